package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"linkforge/internal/logging"
)

const version = "1.2.0"

var (
	// Global flags
	verbose    bool
	workspace  string
	netTimeout time.Duration

	// Console logger; categorized file logs live under .forge/logs
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "linkforge - automated link-building campaign runner",
	Long: `linkforge publishes generated articles across third-party platforms,
rotating through a platform catalog while tracking platform health,
retrying transient failures, and failing over between content providers.

Typical workflow:
  forge campaign create --owner you --keyword "espresso" --anchor "best espresso" --url https://your.site
  forge campaign start <id>
  forge run`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := resolveWorkspace()
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		if err := logging.InitAudit(); err != nil {
			logger.Warn("audit trail unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the forge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forge %s\n", version)
	},
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console output")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().DurationVar(&netTimeout, "timeout", 30*time.Second, "network timeout for one-shot commands")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(campaignCmd)
	rootCmd.AddCommand(platformCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
