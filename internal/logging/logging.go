package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. The level comes from
// LOG_LEVEL and defaults to errors only, so the interactive client stays
// quiet unless asked.
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("LOG_LEVEL"), zerolog.ErrorLevel))

	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps the LOG_LEVEL vocabulary onto a zerolog level, falling
// back to def for empty or unknown values.
func ParseLevel(l string, def zerolog.Level) zerolog.Level {
	switch l {
	case "dev", "development", "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "production", "prod":
		return zerolog.ErrorLevel
	}
	return def
}

// SetDefaultLevel changes the global level unless LOG_LEVEL was set
// explicitly. The server uses it to log at info by default.
func SetDefaultLevel(l zerolog.Level) {
	if _, ok := os.LookupEnv("LOG_LEVEL"); ok {
		return
	}
	zerolog.SetGlobalLevel(l)
}
