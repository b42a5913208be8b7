package context

import (
	"context"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" || RunIDFromContext(ctx) != "" {
		t.Fatalf("expected empty values on a bare context")
	}

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithRunID(ctx, "run-9")
	ctx = WithActor(ctx, "system", "scheduler")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected trimmed request id, got %q", got)
	}
	if got := RunIDFromContext(ctx); got != "run-9" {
		t.Fatalf("expected run id, got %q", got)
	}
	typ, id := ActorFromContext(ctx)
	if typ != "system" || id != "scheduler" {
		t.Fatalf("unexpected actor %q/%q", typ, id)
	}
}
