// internal/providers/idle_test.go
package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdleTimerFiresWithoutTouch(t *testing.T) {
	ctx, idle := WithIdleTimeout(context.Background(), 20*time.Millisecond)
	defer idle.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected idle timeout")
	}
	err := idle.Err(ctx, ctx.Err())
	if !errors.Is(err, ErrStreamStalled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected stalled deadline error, got %v", err)
	}
}

func TestIdleTimerTouchExtendsWindow(t *testing.T) {
	ctx, idle := WithIdleTimeout(context.Background(), 80*time.Millisecond)
	defer idle.Stop()

	for i := 0; i < 6; i++ {
		time.Sleep(20 * time.Millisecond)
		idle.Touch()
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("expected context alive while touched, got %v", err)
	}
}

func TestIdleTimerParentCancelIsNotStall(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, idle := WithIdleTimeout(parent, time.Minute)
	defer idle.Stop()
	cancel()

	if err := idle.Err(ctx, ctx.Err()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestNilIdleTimer(t *testing.T) {
	var idle *IdleTimer
	idle.Touch()
	idle.Stop()
	boom := errors.New("boom")
	if err := idle.Err(context.Background(), boom); err != boom {
		t.Fatalf("expected error passed through, got %v", err)
	}
}
