// Package logger is the pool's diagnostic log. It discards everything until
// Init enables it.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var l atomic.Pointer[slog.Logger]

func init() {
	l.Store(discard())
}

// Options configures the logger.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Level   slog.Level // Minimum log level
	Output  io.Writer  // Destination. Default: os.Stderr
}

// Init installs a logger built from opts. Safe to call more than once.
func Init(opts Options) {
	if !opts.Enabled {
		l.Store(discard())
		return
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.Store(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level})))
}

// L returns the current logger.
func L() *slog.Logger { return l.Load() }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L().Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L().Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L().Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L().Error(msg, args...) }
