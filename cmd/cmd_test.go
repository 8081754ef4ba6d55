package cmd

import (
	"testing"

	"github.com/BioHazard786/pairlink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "join", "ipaddr", "status"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestJoinFlagsReachConfig(t *testing.T) {
	fs := joinCmd.Flags()
	require.NoError(t, fs.Parse([]string{"--server", "wss://relay.example.com/ws", "--codec", "msgpack", "-t", "turn.example.com", "-u", "alice", "-p", "secret"}))
	t.Cleanup(func() {
		for _, name := range []string{"server", "codec", "turn", "turn-user", "turn-pass"} {
			f := fs.Lookup(name)
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	cfg, err := LoadClientConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com/ws", cfg.Server)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, config.DefaultSTUN, cfg.STUN)
	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "alice", user)
	assert.Equal(t, "secret", pass)
}

func TestRelayRequiresTURN(t *testing.T) {
	t.Setenv("PAIRLINK_RELAY", "true")
	_, err := LoadClientConfig(statusCmd.Flags())
	assert.ErrorContains(t, err, "without TURN server")
}

func TestServeFlags(t *testing.T) {
	fs := serveCmd.Flags()
	require.NoError(t, fs.Parse([]string{"--port", "9100", "--grpc-address", "127.0.0.1:9101"}))
	t.Cleanup(func() {
		for _, name := range []string{"port", "grpc-address"} {
			f := fs.Lookup(name)
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	cfg, err := config.LoadServer(nil, fs)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "127.0.0.1:9101", cfg.GRPCAddress)
}
