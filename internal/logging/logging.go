// Package logging builds the CLI's loggers on charmbracelet/log.
//
// All output goes to stderr; stdout is reserved for run results. Library
// packages only see a *slog.Logger, so the charmbracelet logger is handed
// to them as a slog.Handler.
//
//	logger := logging.Setup(logging.Options{Verbose: true})
//	wf, _ := stepgraph.New("demo", stepgraph.WithLogger(logger)).Step(s).Commit()
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Level aliases for charmbracelet/log levels.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// Options controls Setup.
type Options struct {
	// Verbose sets the level to Debug.
	Verbose bool
	// Quiet sets the level to Error. It wins over Verbose.
	Quiet bool
	// Level is used when neither Verbose nor Quiet is set ("debug", "info",
	// "warn", "error"). Empty means info.
	Level string
	// Format is "text" (default) or "json".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Setup configures the default charmbracelet logger and returns a
// *slog.Logger that writes through it.
func Setup(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	log.SetLevel(resolveLevel(opts))
	log.SetOutput(out)
	log.SetReportTimestamp(true)
	if strings.EqualFold(opts.Format, "json") {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}

	return slog.New(log.Default())
}

// New creates a logger with the given component prefix. Call Setup first:
// child loggers copy the default logger's settings when they are created.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Slog adapts a charmbracelet logger for packages that take *slog.Logger.
func Slog(l *log.Logger) *slog.Logger {
	return slog.New(l)
}

func resolveLevel(opts Options) log.Level {
	switch {
	case opts.Quiet:
		return log.ErrorLevel
	case opts.Verbose:
		return log.DebugLevel
	}
	if opts.Level == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(opts.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
