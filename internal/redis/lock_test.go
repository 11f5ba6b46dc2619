package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopLocker_RunsFn(t *testing.T) {
	want := errors.New("boom")
	called := false

	err := NewNoopLocker().WithSlotLock(context.Background(), "b:1", func(ctx context.Context) error {
		called = true
		return want
	})
	if !called {
		t.Fatal("expected fn to run")
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestNewFixedWindowLimiter_Defaults(t *testing.T) {
	l := NewFixedWindowLimiter(nil, 0, 0, "  ")
	if l.limit != 60 || l.window != time.Minute || l.prefix != "rl" {
		t.Fatalf("unexpected defaults: limit=%d window=%s prefix=%q", l.limit, l.window, l.prefix)
	}
}
