// Package logger configures the global zerolog logger from command line options.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a go-flags option group shared by all commands.
type Logger struct {
	Level   string `long:"log-level"    env:"LOG_LEVEL"    description:"Log level" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	Format  string `long:"log-format"   env:"LOG_FORMAT"   description:"Log output format" choice:"console" choice:"json" default:"console"`
	NoColor bool   `long:"log-no-color" env:"LOG_NO_COLOR" description:"Disable colors in console output"`
}

// Setup replaces the global logger and level.
func (l Logger) Setup() {
	level := l.level()
	zerolog.SetGlobalLevel(level)
	log.Logger = l.New(os.Stderr)

	log.Debug().
		Str("level", level.String()).
		Str("format", l.format()).
		Msg("Logger configured")
}

// New builds a logger writing to w in the configured format.
func (l Logger) New(w io.Writer) zerolog.Logger {
	if l.format() == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    l.NoColor,
			TimeFormat: time.DateTime,
		}
	}

	return zerolog.New(w).Level(l.level()).With().Timestamp().Logger()
}

func (l Logger) level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(l.Level)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (l Logger) format() string {
	if strings.EqualFold(l.Format, "json") {
		return "json"
	}
	return "console"
}
