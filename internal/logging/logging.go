// Package logging configures the charmbracelet/log logger used across modhub.
//
// Loggers travel through context.Context so that long-running pipeline stages
// can log with the fields of the install they belong to.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// New creates a logger with timestamp formatting writing to w.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Setup builds the process logger. Output goes to stderr and, when logFile is
// non-empty and can be opened, to that file as well. The returned close func
// releases the file handle.
func Setup(verbose bool, logFile string) (*log.Logger, func() error) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }

	var fileErr error
	if logFile != "" {
		f, err := openLogFile(logFile)
		if err != nil {
			fileErr = err
		} else {
			w = io.MultiWriter(os.Stderr, f)
			closeFn = f.Close
		}
	}

	l := New(w, level)
	if verbose {
		l.SetReportCaller(true)
	}
	if fileErr != nil {
		l.Warn("log file unavailable, logging to stderr only", "path", logFile, "err", fileErr)
	}
	log.SetDefault(l)
	return l, closeFn
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// Component returns a child logger tagged with the component name.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = log.Default()
	}
	return l.With("component", name)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a new context carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or log.Default().
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
