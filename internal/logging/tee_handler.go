package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends each record to the console and to the JSON run log. Every
// sink applies its own level.
type teeHandler struct {
	sinks []slog.Handler
}

// newTeeHandler drops nil sinks and avoids wrapping when fewer than two
// remain.
func newTeeHandler(sinks ...slog.Handler) slog.Handler {
	var live []slog.Handler
	for _, h := range sinks {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return &teeHandler{sinks: live}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps writing to the remaining sinks when one fails, so a full
// disk does not silence the console.
func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for i, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if i < len(h.sinks)-1 {
			rec = record.Clone()
		}
		if err := sink.Handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.each(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *teeHandler) each(derive func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		next[i] = derive(sink)
	}
	return &teeHandler{sinks: next}
}
