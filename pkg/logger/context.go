package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor returns an attribute derived from ctx, ok is false when ctx carries none.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type sessionIDKey struct{}

// WithSessionID stores a session id in ctx for SessionIDExtractor.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session id stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}

// SessionIDExtractor adds the session id of the request to every record logged with its context.
func SessionIDExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := SessionIDFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return SessionID(id), true
	}
}

// StringExtractor adapts a context getter, such as a router's request id
// accessor, into an extractor logging under name. Empty values are skipped.
func StringExtractor(name string, get func(context.Context) string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		v := get(ctx)
		if v == "" {
			return slog.Attr{}, false
		}
		return slog.String(name, v), true
	}
}

// contextHandler adds extractor attributes to each record before passing it on.
// Extraction happens per call so request scoped values are never cached.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func newContextHandler(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return next
	}
	return &contextHandler{next: next, extractors: extractors}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
