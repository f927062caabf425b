package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"linkforge/internal/campaign"
	"linkforge/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the campaign daemon until interrupted",
	Long: `Run rebuilds campaign state from the store, re-arms every active
campaign's rotation, and keeps executing publish cycles until the process
receives SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch := campaign.New(s.store, s.registry, buildChain(s.cfg), s.pubs, orchestratorConfig(s.cfg))
		orch.SetCycleContext(ctx)
		if err := orch.Rebuild(); err != nil {
			return fmt.Errorf("failed to rebuild state: %w", err)
		}

		watcher, err := config.NewWatcher(s.ws)
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		} else {
			watcher.OnChange = func(cfg *config.Config) {
				logger.Info("configuration reloaded",
					zap.String("default_provider", cfg.Providers.Default))
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			s.registry.RunHealthLoop(gctx, s.cfg.GetHealthCheckInterval())
			return nil
		})
		if watcher != nil {
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("config watcher failed", zap.Error(err))
			}
		}

		logger.Info("forge daemon running",
			zap.Int("platforms", s.registry.Len()),
			zap.String("workspace", s.ws))

		<-ctx.Done()
		logger.Info("shutting down")

		// Let in-flight cycles finish applying their results, then stop
		// the background loops.
		orch.Close()
		if watcher != nil {
			watcher.Stop()
		}
		_ = g.Wait()

		logger.Info("forge daemon stopped")
		return nil
	},
}
