package cmd

import (
	"fmt"
	"time"

	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/BioHazard786/pairlink/internal/ui"
	"github.com/spf13/cobra"
)

// ipaddrQuiet is how long to wait for further addresses after the last one.
const ipaddrQuiet = time.Second

var ipaddrCmd = &cobra.Command{
	Use:   "ipaddr",
	Short: "Ask the relay for its host's IPv4 addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadClientConfig(cmd.Flags())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		conn, err := NewConnectionContext(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := conn.Client.Send(&protocol.Message{Event: protocol.EventIPAddr}); err != nil {
			return err
		}

		var addrs []string
		timer := time.NewTimer(3 * time.Second)
		defer timer.Stop()

		status := ui.WaitStatus("Waiting for the relay to report its addresses...").Start()
		defer status.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				return quietCancel(ctx.Err())
			case <-timer.C:
				break loop
			case msg, ok := <-conn.Client.Incoming():
				if !ok {
					break loop
				}
				if msg.Event == protocol.EventIPAddr && msg.Address != "" {
					addrs = append(addrs, msg.Address)
					status.SetLabel(fmt.Sprintf("Received %d address(es)...", len(addrs)))
					timer.Reset(ipaddrQuiet)
				}
			}
		}

		status.Stop()
		if len(addrs) == 0 {
			ui.PrintWarning("The relay reported no addresses")
			return nil
		}
		ui.PrintInfof("%s reported %d address(es)", conn.Config.Server, len(addrs))
		fmt.Println(ui.RenderAddresses(addrs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ipaddrCmd)
	addServerFlag(ipaddrCmd.Flags())
}
