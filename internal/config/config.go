package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. PAIRLINK_TURN_USER.
const EnvPrefix = "PAIRLINK_"

// Default configuration values.
const (
	DefaultPort     = 8000
	DefaultServer   = "ws://localhost:8000/ws"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultCodec    = "json"
	DefaultRoomLen  = 256
	defaultPongWait = 60 * time.Second
)

// Server holds the relay configuration.
type Server struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port" validate:"min=1,max=65535"`
	GRPCAddress string `koanf:"grpc_address" validate:"omitempty,hostname_port"`

	// Time allowed to write a frame to a client.
	WriteWait time.Duration `koanf:"write_wait" validate:"min=1s"`
	// Time allowed between pongs before a client is considered gone.
	PongWait       time.Duration `koanf:"pong_wait" validate:"min=2s"`
	MaxMessageSize int64         `koanf:"max_message_size" validate:"min=1024"`
	SendQueue      int           `koanf:"send_queue" validate:"min=1"`

	// Inbound events per second per connection. Zero disables the limit.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"min=1"`

	MaxRoomLength  int      `koanf:"max_room_length" validate:"min=1"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Address is the host:port the HTTP server listens on.
func (s *Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PingPeriod is how often the server pings clients. It must be less than
// PongWait.
func (s *Server) PingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// ServerDefaults are the lowest-priority server settings.
func ServerDefaults() map[string]any {
	return map[string]any{
		"host":             "",
		"port":             DefaultPort,
		"grpc_address":     "",
		"write_wait":       "10s",
		"pong_wait":        defaultPongWait.String(),
		"max_message_size": 64 * 1024, // enough for SDP blobs
		"send_queue":       256,
		"rate_limit":       50.0,
		"rate_burst":       100,
		"max_room_length":  DefaultRoomLen,
		"allowed_origins":  []string{},
	}
}

// Client holds the joining client's configuration.
type Client struct {
	Server   string `koanf:"server" validate:"required,url"`
	STUN     string `koanf:"stun"`
	TURN     string `koanf:"turn"`
	TURNUser string `koanf:"turn_user"`
	TURNPass string `koanf:"turn_pass"`
	Relay    bool   `koanf:"relay"`
	Codec    string `koanf:"codec" validate:"oneof=json msgpack"`
}

// ClientDefaults are the lowest-priority client settings.
func ClientDefaults() map[string]any {
	return map[string]any{
		"server":    DefaultServer,
		"stun":      DefaultSTUN,
		"turn":      "",
		"turn_user": "",
		"turn_pass": "",
		"relay":     false,
		"codec":     DefaultCodec,
	}
}

// WebSocketURL is the signaling endpoint with the codec selected.
func (c *Client) WebSocketURL() (string, error) {
	u, err := url.Parse(c.Server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if c.Codec != "" && c.Codec != DefaultCodec {
		q := u.Query()
		q.Set("codec", c.Codec)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// APIURL maps the websocket server URL to an HTTP endpoint at path on the
// same host.
func (c *Client) APIURL(path string) (string, error) {
	u, err := url.Parse(c.Server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	}
	u.Path = path
	u.RawQuery = ""
	return u.String(), nil
}

// StatsURL is the relay's room statistics endpoint.
func (c *Client) StatsURL() (string, error) {
	return c.APIURL("/api/stats")
}

// FreshRoomURL is the endpoint suggesting an unused room name.
func (c *Client) FreshRoomURL() (string, error) {
	return c.APIURL("/api/rooms/new")
}

// GetSTUNServers returns STUN server URLs.
func (c *Client) GetSTUNServers() []string {
	if c.STUN == "" {
		return nil
	}
	return []string{c.STUN}
}

// GetTURNServers returns TURN server URLs if one is configured.
func (c *Client) GetTURNServers() []string {
	if c.TURN == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURN, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

var validate = validator.New()

// Load reads configuration with the following priority, lowest first:
// defaults, config files (TOML or YAML by extension), PAIRLINK_* env
// vars, extra (e.g. bare PORT), then flags the user actually set.
func Load(defaults map[string]any, files []string, extra map[string]any, flags *pflag.FlagSet, out any) error {
	ko := koanf.New(".")

	if err := ko.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	for _, f := range files {
		if err := ko.Load(file.Provider(f), parserFor(f)); err != nil {
			return fmt.Errorf("read config %s: %w", f, err)
		}
	}

	if err := ko.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(extra) > 0 {
		if err := ko.Load(confmap.Provider(extra, "."), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if flags != nil {
		if err := ko.Load(posflag.ProviderWithFlag(flags, ".", ko, flagKey(flags)), nil); err != nil {
			return fmt.Errorf("load flags: %w", err)
		}
	}

	if err := ko.Unmarshal("", out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadServer loads the relay config. The bare PORT variable is honoured
// for platforms that inject it.
func LoadServer(files []string, flags *pflag.FlagSet) (*Server, error) {
	var extra map[string]any
	if p, ok := os.LookupEnv("PORT"); ok && p != "" {
		extra = map[string]any{"port": p}
	}

	var cfg Server
	if err := Load(ServerDefaults(), files, extra, flags, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient loads the client config.
func LoadClient(files []string, flags *pflag.FlagSet) (*Client, error) {
	var cfg Client
	if err := Load(ClientDefaults(), files, nil, flags, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	}
	return toml.Parser()
}

// envKey maps PAIRLINK_TURN_USER to turn_user and PAIRLINK_A__B to a.b.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// flagKey maps --turn-user to turn_user.
func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}
}
