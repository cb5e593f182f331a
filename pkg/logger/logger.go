package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger. Local runs get a human readable console,
// everything else JSON lines on stdout.
func New(level, appEnv string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if appEnv == "local" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05 MST"}
	}
	return NewWithWriter(out, level)
}

func NewWithWriter(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldInteger = true

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "tinylinks").
		Logger()
}
