package model

import "context"

// RequestContext carries identity and tracing information for the lifetime
// of a request. It is immutable after construction and safe for concurrent
// reads.
type RequestContext struct {
	SubjectID     string
	Email         string
	Roles         []string
	Claims        map[string]any
	CorrelationID string
	TraceID       string
}

// Actor returns the subject to attribute workflow changes to, falling back
// to "anonymous" for unauthenticated requests.
func (rc *RequestContext) Actor() string {
	if rc == nil || rc.SubjectID == "" {
		return "anonymous"
	}
	return rc.SubjectID
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
