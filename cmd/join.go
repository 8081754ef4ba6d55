package cmd

import (
	"context"
	"fmt"

	"github.com/BioHazard786/pairlink/internal/client"
	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/negotiation"
	"github.com/BioHazard786/pairlink/internal/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a room and negotiate a WebRTC session with the other member",
	Long: `Join a room on the relay. The first member waits; when a second one
arrives the first sends an offer and the two negotiate a WebRTC session.
Without a room name the relay suggests an unused one.

Examples:
  pairlink join
  pairlink join lobby
  pairlink join lobby --server wss://relay.example.com/ws --codec msgpack
  pairlink join lobby --turn turn.example.com -u user -p pass --relay`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		return quietCancel(joinRoom(cmd, roomID, plain))
	},
}

func joinRoom(cmd *cobra.Command, roomID string, plain bool) error {
	cfg, err := LoadClientConfig(cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if roomID == "" {
		if roomID, err = freshRoom(ctx, cfg); err != nil {
			return err
		}
		ui.PrintInfof("No room given, the relay suggested %s", roomID)
	}

	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Println(ui.RoomBox(roomID, cfg.Server))

	l := log.With().Str("component", "negotiation").Logger()
	n := negotiation.New(negotiation.Config{
		Room:     roomID,
		Signaler: conn.Client,
		Sessions: negotiation.NewPionSessionFactory(cfg, l),
		Media:    negotiation.SilenceSource{},
		Log:      l,
	})

	errc := make(chan error, 1)
	go func() { errc <- n.Run(ctx, conn.Client.Incoming()) }()

	if plain {
		for s := range n.States() {
			fmt.Println(ui.FormatSnapshot(s))
		}
	} else if err := ui.RunSession(roomID, n.States(), n.Hangup); err != nil {
		n.Hangup()
		<-errc
		return fmt.Errorf("ui: %w", err)
	}

	if err := <-errc; err != nil {
		return err
	}
	ui.PrintSuccessf("Left room %s", roomID)
	return nil
}

func freshRoom(ctx context.Context, cfg *config.Client) (string, error) {
	u, err := cfg.FreshRoomURL()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	name, err := client.FetchFreshRoom(ctx, u)
	if err != nil {
		return "", negotiation.NewError("pick a room", err)
	}
	return name, nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	addServerFlag(joinCmd.Flags())
	addICEFlags(joinCmd.Flags())
	joinCmd.Flags().Bool("plain", false, "Print state changes as lines instead of the interactive view")
}
