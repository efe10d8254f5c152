// Package logging builds the root slog logger from configuration: a
// text, json, or tint console handler, optionally teeing every record
// to a fluentd forwarder.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"

	"github.com/voxgate/voxgate/internal/config"
)

// New builds the root logger. The returned closer shuts down the
// fluentd client when one was configured; it is nil-safe to call.
func New(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit console writer, for tests.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05",
		})
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	closer := func() error { return nil }

	if cfg.Fluentd.Enabled {
		client, err := fluent.New(fluent.Config{
			FluentHost: cfg.Fluentd.Host,
			FluentPort: cfg.Fluentd.Port,
			Async:      true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect fluentd: %w", err)
		}
		handler = newTeeHandler(handler, newFluentHandler(client, cfg.Fluentd.Tag, level))
		closer = client.Close
	}

	return slog.New(handler), closer, nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
