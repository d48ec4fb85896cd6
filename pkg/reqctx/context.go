package reqctx

import (
	"context"
	"time"
)

type ctxKey struct{ name string }

var (
	metaKey   = ctxKey{"request-meta"}
	claimsKey = ctxKey{"claims"}
)

// RequestMeta describes the HTTP request a context was derived from.
type RequestMeta struct {
	RequestID   string
	ClientIP    string
	UserAgent   string
	RequestedAt time.Time
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey, meta)
}

// RequestMetaFromContext reports false outside an HTTP request.
func RequestMetaFromContext(ctx context.Context) (*RequestMeta, bool) {
	meta, ok := ctx.Value(metaKey).(*RequestMeta)
	return meta, ok && meta != nil
}

func RequestIDFromContext(ctx context.Context) string {
	if meta, ok := RequestMetaFromContext(ctx); ok {
		return meta.RequestID
	}
	return ""
}

// LogAttrs returns slog key/value pairs naming the request and the caller,
// for logger.With(reqctx.LogAttrs(ctx)...). Missing parts are left out.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	if c, ok := ClaimsFromContext(ctx); ok {
		attrs = append(attrs, "user_id", c.GetUserID().String(), "role", c.GetRole())
	}
	return attrs
}
