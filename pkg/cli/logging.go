package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	// Verbose enables debug output.
	Verbose bool

	// Timestamps adds a time column.
	Timestamps bool

	// Prefix is shown before every message (usually the app name).
	Prefix string
}

// NewLogger returns a slog.Logger that writes leveled, colored lines to w.
// A nil w writes to stderr.
func NewLogger(w io.Writer, opts LogOptions) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	h := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.Kitchen,
	})
	return slog.New(h)
}

// SetupLogging installs NewLogger as the process default and returns it.
func SetupLogging(opts LogOptions) *slog.Logger {
	l := NewLogger(os.Stderr, opts)
	slog.SetDefault(l)
	return l
}
