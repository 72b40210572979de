// Package logger configures zerolog for claphost.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justyntemme/claphost/pkg/config"
)

// Setup applies cfg to the global zerolog level and log.Logger and returns
// the configured logger. Output goes to stderr unless cfg.File is set; the
// returned closer releases that file and is a no-op otherwise.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("logger: open %s: %w", cfg.File, err)
		}
		out, closer = f, f
	}

	l, err := New(out, cfg.Format)
	if err != nil {
		closer.Close()
		return zerolog.Nop(), nopCloser{}, err
	}
	log.Logger = l
	return l, closer, nil
}

// New builds a logger writing to w. Format "console" (or "text") is human
// readable; "json" or empty writes one JSON object per line.
func New(w io.Writer, format string) (zerolog.Logger, error) {
	switch strings.ToLower(format) {
	case "console", "text":
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		return zerolog.New(cw).With().Timestamp().Logger(), nil
	case "json", "":
		return zerolog.New(w).With().Timestamp().Logger(), nil
	default:
		return zerolog.Nop(), fmt.Errorf("logger: unknown format %q", format)
	}
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("logger: unknown level %q", level)
	}
}

// ForPlugin returns a child logger tagged with the plugin and instance ids.
func ForPlugin(l zerolog.Logger, pluginID, instanceID string) zerolog.Logger {
	return l.With().Str("plugin", pluginID).Str("instance", instanceID).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
