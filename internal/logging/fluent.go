package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// teeHandler fans every record out to both handlers. Enabled follows
// the console handler; the fluent side applies its own level gate.
type teeHandler struct {
	console slog.Handler
	forward slog.Handler
}

func newTeeHandler(console, forward slog.Handler) slog.Handler {
	return &teeHandler{console: console, forward: forward}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.forward.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.console.Enabled(ctx, r.Level) {
		err = h.console.Handle(ctx, r)
	}
	if h.forward.Enabled(ctx, r.Level) {
		if ferr := h.forward.Handle(ctx, r.Clone()); err == nil {
			err = ferr
		}
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{
		console: h.console.WithAttrs(attrs),
		forward: h.forward.WithAttrs(attrs),
	}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{
		console: h.console.WithGroup(name),
		forward: h.forward.WithGroup(name),
	}
}

// fluentHandler posts records to a fluentd forwarder as flat maps.
type fluentHandler struct {
	client *fluent.Fluent
	tag    string
	level  slog.Level
	attrs  []slog.Attr
}

func newFluentHandler(client *fluent.Fluent, tag string, level slog.Level) slog.Handler {
	return &fluentHandler{client: client, tag: tag, level: level}
}

func (h *fluentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *fluentHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]interface{}{
		"level":     r.Level.String(),
		"message":   r.Message,
		"timestamp": r.Time.UTC().Format(time.RFC3339Nano),
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Resolve().Any()
		return true
	})

	return h.client.Post(h.tag, data)
}

func (h *fluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &fluentHandler{client: h.client, tag: h.tag, level: h.level, attrs: merged}
}

// WithGroup flattens groups; fluentd records stay one level deep.
func (h *fluentHandler) WithGroup(name string) slog.Handler {
	return h
}
