package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/pairlink/internal/ui"
	"github.com/BioHazard786/pairlink/internal/version"
	"github.com/spf13/cobra"
)

var flagConfigs []string

var rootCmd = &cobra.Command{
	Use:   "pairlink",
	Short: "Two-party WebRTC rendezvous: a signaling relay and a reference client",
	Long: `pairlink pairs exactly two participants in a named room and relays the
signaling messages they need to negotiate a direct WebRTC session.

Run "pairlink serve" to start a relay, and "pairlink join <room>" on two
machines to pair them.`,
	Version: version.Version,
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&flagConfigs, "config", "c", nil, "Config file, TOML or YAML (repeatable)")
}
