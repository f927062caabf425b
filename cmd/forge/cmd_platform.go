package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"linkforge/internal/config"
	"linkforge/internal/platform"
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Inspect the platform catalog and its health",
}

var platformListCmd = &cobra.Command{
	Use:   "list",
	Short: "List publish platforms with persisted health",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.restoreHealth(); err != nil {
			return err
		}

		fmt.Printf("%-16s  %-24s  %3s  %-10s  %7s  %s\n",
			"ID", "DOMAIN", "DR", "HEALTH", "RATE", "COOLDOWN")
		now := time.Now().UTC()
		for _, t := range s.registry.Snapshot() {
			cooldown := "-"
			if t.InCooldown(now) {
				cooldown = "until " + t.NextRetryAfter.Format("15:04:05")
			}
			rate := "-"
			if t.TotalAttempts > 0 {
				rate = fmt.Sprintf("%5.1f%%", t.SuccessRate)
			}
			fmt.Printf("%-16s  %-24s  %3d  %-10s  %7s  %s\n",
				t.ID, t.Domain, t.DomainRating, t.Health, rate, cooldown)
		}
		return nil
	},
}

var platformProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check adapter endpoint reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		probes := make(map[string]platform.ProbeFunc, len(s.catalog.Platforms))
		for _, entry := range s.catalog.Platforms {
			if entry.Disabled {
				continue
			}
			probes[entry.ID] = probeFor(entry)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), netTimeout)
		defer cancel()

		for _, r := range s.registry.Probe(ctx, probes) {
			if r.Err != nil {
				fmt.Printf("%-16s  FAIL  %v (%v)\n", r.ID, r.Err, r.Latency.Round(time.Millisecond))
			} else {
				fmt.Printf("%-16s  ok    %v\n", r.ID, r.Latency.Round(time.Millisecond))
			}
		}
		return nil
	},
}

// probeFor builds a reachability check for one catalog entry. A HEAD to
// the adapter endpoint is enough; anything the server answers counts as
// reachable.
func probeFor(entry config.CatalogEntry) platform.ProbeFunc {
	target := entry.BaseURL
	if target == "" {
		target = "https://" + entry.Domain
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

func init() {
	platformCmd.AddCommand(platformListCmd)
	platformCmd.AddCommand(platformProbeCmd)
}
