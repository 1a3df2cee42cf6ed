package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Outside production the output is
// pretty printed with timestamps. debug forces the debug level regardless of level.
func Setup(env, level string, debug bool) {
	SetupWriter(os.Stdout, env, level, debug)
}

func SetupWriter(out io.Writer, env, level string, debug bool) {
	if env != "production" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	zlog.Logger = zerolog.New(out).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(ParseLevel(level))
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// For returns a child of the global logger tagged with the service name.
func For(service string) zerolog.Logger {
	return zlog.With().Str("service", service).Logger()
}
