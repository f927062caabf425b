package platform

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestRunHealthLoop_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t, "a")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.RunHealthLoop(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health loop did not stop after cancel")
	}
}
