package cmd

import (
	"fmt"

	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/logging"
	"github.com/BioHazard786/pairlink/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay.

The listen port defaults to 8000 and can be set with --port, PAIRLINK_PORT
or PORT. Other settings come from PAIRLINK_* variables or --config files.

Examples:
  pairlink serve
  pairlink serve --port 9000 --grpc-address :9001
  PAIRLINK_RATE_LIMIT=20 pairlink serve -c relay.toml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.SetDefaultLevel(zerolog.InfoLevel)

		cfg, err := config.LoadServer(flagConfigs, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		l := log.With().Str("component", "relay").Logger()
		return server.New(cfg, l).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().String("host", "", "Interface to listen on")
	serveCmd.Flags().String("grpc-address", "", "Address for the gRPC health service (disabled when empty)")
}
