package model

import (
	"context"
	"testing"
)

func TestRequestContext_Actor(t *testing.T) {
	var nilCtx *RequestContext
	if got := nilCtx.Actor(); got != "anonymous" {
		t.Errorf("nil Actor() = %q, want anonymous", got)
	}
	rc := &RequestContext{SubjectID: "alice"}
	if got := rc.Actor(); got != "alice" {
		t.Errorf("Actor() = %q, want alice", got)
	}
}

func TestWithRequestContext_roundTrip(t *testing.T) {
	rc := &RequestContext{SubjectID: "alice"}
	ctx := WithRequestContext(context.Background(), rc)
	if got := RequestContextFrom(ctx); got != rc {
		t.Errorf("RequestContextFrom() = %v, want %v", got, rc)
	}
	if got := RequestContextFrom(context.Background()); got != nil {
		t.Errorf("RequestContextFrom(empty) = %v, want nil", got)
	}
}
