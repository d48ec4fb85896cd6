// Package reqctx carries request-scoped values through context.Context: the
// request metadata set by the request id middleware and the claims set by
// the auth middleware.
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{RequestID: rid})
//	ctx = reqctx.WithClaims(ctx, claims)
//
//	logger.With(reqctx.LogAttrs(ctx)...).Info("record uploaded")
package reqctx
