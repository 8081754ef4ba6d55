package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BioHazard786/pairlink/internal/client"
	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/BioHazard786/pairlink/internal/negotiation"
	"github.com/BioHazard786/pairlink/internal/protocol"
	"github.com/BioHazard786/pairlink/internal/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const connectTimeout = 15 * time.Second

// ConnectionContext is an open relay connection plus the config it was
// made with.
type ConnectionContext struct {
	Client *client.Client
	Config *config.Client
}

func NewConnectionContext(ctx context.Context, cfg *config.Client) (*ConnectionContext, error) {
	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		return nil, err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	status := ui.DialStatus("Connecting to server...").Start()

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	c := client.New(wsURL, codec, log.With().Str("component", "signaling").Logger())
	if err := c.Connect(dialCtx); err != nil {
		status.Fail("Could not reach the relay")
		return nil, negotiation.NewError("connect to server", err)
	}
	status.Succeed("Connected to " + cfg.Server)

	return &ConnectionContext{Client: c, Config: cfg}, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// LoadClientConfig loads the client config from files, env and flags.
func LoadClientConfig(flags *pflag.FlagSet) (*config.Client, error) {
	cfg, err := config.LoadClient(flagConfigs, flags)
	if err != nil {
		return nil, negotiation.NewError("load config", err)
	}

	if cfg.Relay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

func addServerFlag(fs *pflag.FlagSet) {
	fs.StringP("server", "s", config.DefaultServer, "Signaling server websocket URL")
	fs.String("codec", config.DefaultCodec, "Frame encoding: json or msgpack")
}

func addICEFlags(fs *pflag.FlagSet) {
	fs.String("stun", config.DefaultSTUN, "STUN server URL")
	fs.StringP("turn", "t", "", "TURN server host")
	fs.StringP("turn-user", "u", "", "TURN username")
	fs.StringP("turn-pass", "p", "", "TURN password")
	fs.BoolP("relay", "r", false, "Force relay mode")
}

// quietCancel treats an interrupt as a normal exit.
func quietCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
