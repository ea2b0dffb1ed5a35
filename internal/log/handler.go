package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/marketplace/internal/requestid"
	"github.com/ErlanBelekov/marketplace/internal/session"
)

// Field reads one request-scoped attribute from a record's context. It
// reports false when the context carries no value for it.
type Field func(ctx context.Context) (slog.Attr, bool)

// RequestID is set by the request-id middleware on every API request.
func RequestID(ctx context.Context) (slog.Attr, bool) {
	id := requestid.FromContext(ctx)
	return slog.String("request_id", id), id != ""
}

// UserID is present once the session guard has authenticated the request.
func UserID(ctx context.Context) (slog.Attr, bool) {
	ident := session.FromContext(ctx)
	if ident == nil {
		return slog.Attr{}, false
	}
	return slog.String("user_id", ident.ID), true
}

// ContextHandler decorates records with Fields taken from their context.
type ContextHandler struct {
	inner  slog.Handler
	fields []Field
}

// NewContextHandler wraps inner. Without explicit fields it adds request_id
// and user_id.
func NewContextHandler(inner slog.Handler, fields ...Field) *ContextHandler {
	if len(fields) == 0 {
		fields = []Field{RequestID, UserID}
	}
	return &ContextHandler{inner: inner, fields: fields}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range h.fields {
		if attr, ok := f(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), fields: h.fields}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), fields: h.fields}
}
