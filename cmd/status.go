package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/BioHazard786/pairlink/internal/client"
	"github.com/BioHazard786/pairlink/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show room statistics of a relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadClientConfig(cmd.Flags())
		if err != nil {
			return err
		}
		statsURL, err := cfg.StatsURL()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		status := ui.WaitStatus("Fetching room statistics...").Start()
		stats, err := client.FetchStats(ctx, statsURL)
		if err != nil {
			status.Fail("Could not fetch statistics")
			return err
		}
		status.Stop()
		if stats.Rooms == 0 {
			ui.PrintInfof("No open rooms on %s", cfg.Server)
		}
		fmt.Println(ui.RenderStats(cfg.Server, stats))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addServerFlag(statusCmd.Flags())
}
