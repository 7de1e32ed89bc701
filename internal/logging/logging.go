// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options selects the level and output format.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // auto, console, json
	Debug  bool   // forces debug level
}

// New returns a logger writing to w. With Format "auto" a human-readable
// console writer is used when w is a terminal, JSON otherwise.
func New(w io.Writer, opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	if opts.Debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	out := w
	if useConsole(w, opts.Format) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func useConsole(w io.Writer, format string) bool {
	switch strings.ToLower(format) {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
