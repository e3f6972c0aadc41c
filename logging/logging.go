// ABOUTME: zerolog setup shared by the CLI, MCP server and sync daemon
// ABOUTME: Console output on a terminal, JSON otherwise; logs go to stderr so stdout stays machine-readable
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New builds the process logger. format is auto, json or console.
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, format, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewWithWriter is New with an explicit destination and terminal flag.
func NewWithWriter(w io.Writer, level, format string, tty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := format == "console" || (format != "json" && tty)
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !tty}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "kith").Logger()
}
