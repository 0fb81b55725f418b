package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects log destinations and verbosity.
type Options struct {
	// Verbose enables debug records.
	Verbose bool
	// NoStderr drops the stderr destination.
	NoStderr bool
	// Pipe raises the stderr level to ERROR so machine-readable stdout
	// stays the only output a caller sees.
	Pipe bool
	// File, when set, receives records through a rotating writer.
	File string
	// Stderr overrides os.Stderr, for tests.
	Stderr io.Writer
}

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// New builds the process logger. The returned closer flushes and closes the
// log file, if any.
func New(opts Options) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if !opts.NoStderr {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		stderrLevel := level
		if opts.Pipe {
			stderrLevel = slog.LevelError
		}
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{Level: stderrLevel}))
	}

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
		}
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level}))
		closer = lj
	}

	switch len(handlers) {
	case 0:
		return Discard(), closer
	case 1:
		return slog.New(handlers[0]), closer
	default:
		return slog.New(fanout(handlers)), closer
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
