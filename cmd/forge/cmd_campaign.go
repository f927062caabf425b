package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"linkforge/internal/campaign"
)

var (
	createOwner   string
	createKeyword []string
	createAnchor  []string
	createURL     string
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage link-building campaigns",
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new draft campaign",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		orch := campaign.New(s.store, s.registry, buildChain(s.cfg), s.pubs, orchestratorConfig(s.cfg))
		c, err := orch.Create(createOwner, createKeyword, createAnchor, createURL)
		if err != nil {
			return err
		}

		fmt.Printf("Created campaign %s (draft)\n", c.ID)
		fmt.Printf("  keywords:  %s\n", strings.Join(c.Keywords, ", "))
		fmt.Printf("  anchors:   %s\n", strings.Join(c.AnchorTexts, ", "))
		fmt.Printf("  target:    %s\n", c.TargetURL)
		fmt.Printf("  platforms: %d\n", c.Progress.TotalPlatforms)
		fmt.Printf("\nStart it with: forge campaign start %s\n", c.ID)
		return nil
	},
}

var campaignStartCmd = &cobra.Command{
	Use:   "start <campaign-id>",
	Short: "Activate a draft or paused campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionCampaign(args[0], "started", func(c *campaign.Campaign, now time.Time) (bool, error) {
			if err := c.ApplyStart(now); err != nil {
				return false, err
			}
			return true, nil
		})
	},
}

var campaignPauseCmd = &cobra.Command{
	Use:   "pause <campaign-id>",
	Short: "Pause an active campaign, preserving its rotation cursor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionCampaign(args[0], "paused", (*campaign.Campaign).ApplyPause)
	},
}

var campaignResumeCmd = &cobra.Command{
	Use:   "resume <campaign-id>",
	Short: "Resume a paused campaign (alias for start)",
	Args:  cobra.ExactArgs(1),
	RunE:  campaignStartCmd.RunE,
}

var campaignVerifyCmd = &cobra.Command{
	Use:   "verify <campaign-id>",
	Short: "Re-check published articles for live backlinks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		orch := campaign.New(s.store, s.registry, buildChain(s.cfg), s.pubs, orchestratorConfig(s.cfg))
		ctx, cancel := context.WithTimeout(cmd.Context(), netTimeout)
		defer cancel()

		results, err := orch.VerifyBacklinks(ctx, args[0])
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No published articles to verify yet.")
			return nil
		}

		live := 0
		for _, r := range results {
			switch {
			case r.Err != nil:
				fmt.Printf("  [%s] ERROR    %s: %v\n", r.Platform, r.ArticleURL, r.Err)
			case r.Found:
				live++
				fmt.Printf("  [%s] LIVE     %s (anchor %q)\n", r.Platform, r.ArticleURL, r.AnchorText)
			default:
				fmt.Printf("  [%s] MISSING  %s\n", r.Platform, r.ArticleURL)
			}
		}
		fmt.Printf("\n%d/%d backlinks live\n", live, len(results))
		return nil
	},
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show one campaign's progress and article log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		c, err := s.store.GetCampaign(args[0])
		if err != nil {
			return err
		}
		printCampaign(c)
		return nil
	},
}

var (
	listStatus string
	listOwner  string
)

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack()
		if err != nil {
			return err
		}
		defer s.close()

		var list []*campaign.Campaign
		switch {
		case listStatus != "":
			status := campaign.Status(listStatus)
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", listStatus)
			}
			list, err = s.store.ListByStatus(status)
		case listOwner != "":
			list, err = s.store.ListByOwner(listOwner)
		default:
			list, err = s.store.ListCampaigns()
		}
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No campaigns yet. Create one with: forge campaign create")
			return nil
		}

		fmt.Printf("%-36s  %-10s  %-20s  %s\n", "ID", "STATUS", "OWNER", "PROGRESS")
		for _, c := range list {
			fmt.Printf("%-36s  %-10s  %-20s  %d/%d links\n",
				c.ID, c.Status, c.Owner, c.LinksBuilt, c.Progress.TotalPlatforms)
		}
		return nil
	},
}

// transitionCampaign applies a lifecycle transition through the store.
// Lifecycle edits from the CLI do not schedule cycles; the run daemon
// picks the new status up when it rebuilds.
func transitionCampaign(id, verb string, apply func(*campaign.Campaign, time.Time) (bool, error)) error {
	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.close()

	c, err := s.store.GetCampaign(id)
	if err != nil {
		return err
	}
	changed, err := apply(c, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		fmt.Printf("Campaign %s is already %s\n", id, verb)
		return nil
	}
	if err := s.store.SaveCampaign(c); err != nil {
		return err
	}
	fmt.Printf("Campaign %s %s (now %s)\n", id, verb, c.Status)
	if c.Status == campaign.StatusActive {
		fmt.Println("Run the daemon to execute it: forge run")
	}
	return nil
}

func printCampaign(c *campaign.Campaign) {
	fmt.Printf("Campaign %s\n", c.ID)
	fmt.Printf("  owner:    %s\n", c.Owner)
	fmt.Printf("  status:   %s\n", c.Status)
	fmt.Printf("  target:   %s\n", c.TargetURL)
	fmt.Printf("  keywords: %s\n", strings.Join(c.Keywords, ", "))
	fmt.Printf("  progress: %d/%d platforms, %d links built\n",
		c.Progress.CompletedPlatforms, c.Progress.TotalPlatforms, c.LinksBuilt)
	if c.CurrentPlatform != "" {
		fmt.Printf("  current:  %s\n", c.CurrentPlatform)
	}
	if c.Progress.StartedAt != nil {
		fmt.Printf("  started:  %s\n", c.Progress.StartedAt.Format(time.RFC3339))
	}
	if c.Progress.EstimatedCompletion != nil {
		fmt.Printf("  est done: %s\n", c.Progress.EstimatedCompletion.Format(time.RFC3339))
	}
	if c.CompletedAt != nil {
		fmt.Printf("  finished: %s\n", c.CompletedAt.Format(time.RFC3339))
	}
	if len(c.Articles) > 0 {
		fmt.Println("\nPublished articles:")
		for _, a := range c.Articles {
			fmt.Printf("  [%s] %s\n    %s (%d words, anchor %q)\n",
				a.Platform, a.Title, a.URL, a.WordCount, a.AnchorText)
		}
	}
}

func init() {
	campaignCreateCmd.Flags().StringVar(&createOwner, "owner", "", "campaign owner (required)")
	campaignCreateCmd.Flags().StringArrayVar(&createKeyword, "keyword", nil, "article keyword (repeatable, required)")
	campaignCreateCmd.Flags().StringArrayVar(&createAnchor, "anchor", nil, "backlink anchor text (repeatable, required)")
	campaignCreateCmd.Flags().StringVar(&createURL, "url", "", "target URL backlinks point at (required)")
	_ = campaignCreateCmd.MarkFlagRequired("owner")
	_ = campaignCreateCmd.MarkFlagRequired("keyword")
	_ = campaignCreateCmd.MarkFlagRequired("anchor")
	_ = campaignCreateCmd.MarkFlagRequired("url")

	campaignListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (draft|active|paused|completed|failed)")
	campaignListCmd.Flags().StringVar(&listOwner, "owner", "", "filter by owner")

	campaignCmd.AddCommand(campaignCreateCmd)
	campaignCmd.AddCommand(campaignStartCmd)
	campaignCmd.AddCommand(campaignPauseCmd)
	campaignCmd.AddCommand(campaignResumeCmd)
	campaignCmd.AddCommand(campaignVerifyCmd)
	campaignCmd.AddCommand(campaignStatusCmd)
	campaignCmd.AddCommand(campaignListCmd)
}
