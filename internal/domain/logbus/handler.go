package logbus

import (
	"context"
	"log/slog"
	"time"
)

// categoryAttr is the slog attribute key a caller sets (via
// slog.With("category", ...)) to route a record into a non-default
// LogEntry category; source works the same way.
const (
	categoryAttr = "category"
	sourceAttr   = "source"
)

// Handler is an slog.Handler that appends every record to a Buffer as a
// LogEntry, then (if Next is set) forwards the record unchanged so log
// output still reaches the process's regular handler chain.
type Handler struct {
	buf             *Buffer
	defaultSource   Source
	defaultCategory Category
	logger          string
	next            slog.Handler
	attrs           []slog.Attr
}

// NewHandler creates a Handler writing into buf, defaulting unset
// records to defaultSource/defaultCategory. next, if non-nil, is still
// invoked so structured output (stderr, a file, etc.) keeps flowing.
func NewHandler(buf *Buffer, defaultSource Source, defaultCategory Category, next slog.Handler) *Handler {
	return &Handler{buf: buf, defaultSource: defaultSource, defaultCategory: defaultCategory, next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.next != nil {
		return h.next.Enabled(ctx, level)
	}
	return true
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Category:  h.defaultCategory,
		Source:    h.defaultSource,
		Logger:    h.logger,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	for _, a := range h.attrs {
		applyAttr(&entry, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		applyAttr(&entry, a)
		return true
	})

	h.buf.Append(entry)

	if h.next != nil {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func applyAttr(e *LogEntry, a slog.Attr) {
	switch a.Key {
	case categoryAttr:
		e.Category = Category(a.Value.String())
	case sourceAttr:
		e.Source = Source(a.Value.String())
	case "logger":
		e.Logger = a.Value.String()
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.next
	if next != nil {
		next = next.WithAttrs(attrs)
	}
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &Handler{buf: h.buf, defaultSource: h.defaultSource, defaultCategory: h.defaultCategory, logger: h.logger, next: next, attrs: merged}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	next := h.next
	if next != nil {
		next = next.WithGroup(name)
	}
	return &Handler{buf: h.buf, defaultSource: h.defaultSource, defaultCategory: h.defaultCategory, logger: h.logger, next: next, attrs: h.attrs}
}
