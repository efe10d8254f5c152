package router

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBridgeDeliversProgress(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)
	r.Register("t1", "c1")

	b := NewBridge(BridgeConfig{BufferSize: 8}, r, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Stop(context.Background())

	if !b.Emit("t1", 25, "quarter") {
		t.Fatal("Emit = false")
	}

	waitFor(t, time.Second, func() bool { return len(sender.sent("c1")) == 1 })

	msgs := sender.sent("c1")
	if *msgs[0].Progress != 25 || msgs[0].Message != "quarter" {
		t.Errorf("delivered = %+v, want progress 25 %q", msgs[0], "quarter")
	}
}

func TestBridgeEmitBeforeStart(t *testing.T) {
	b := NewBridge(BridgeConfig{}, New(newFakeSender(), nil), nil)

	// Construction-ordering hazard: the handoff fails explicitly instead
	// of crashing the worker.
	if b.Emit("t1", 10, "early") {
		t.Error("Emit before Start = true, want false")
	}
}

func TestBridgeEmitAfterStop(t *testing.T) {
	b := NewBridge(BridgeConfig{}, New(newFakeSender(), nil), nil)

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if b.Emit("t1", 10, "late") {
		t.Error("Emit after Stop = true, want false")
	}
}

func TestBridgeHandoffTimeout(t *testing.T) {
	ctx := context.Background()
	blocked := make(chan struct{})

	r := New(blockingSender{release: blocked}, nil)
	r.Register("t1", "c1")

	b := NewBridge(BridgeConfig{HandoffTimeout: 30 * time.Millisecond, BufferSize: 1}, r, nil)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		close(blocked)
		b.Stop(ctx)
	}()

	// The dispatcher consumes the first update and blocks in the sender;
	// the second fills the buffer; the third must time out and drop.
	b.Emit("t1", 1, "a")
	waitFor(t, time.Second, func() bool { return len(b.updates) == 0 })
	b.Emit("t1", 2, "b")

	start := time.Now()
	if b.Emit("t1", 3, "c") {
		t.Error("Emit with saturated queue = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Emit returned after %v, want it to wait near the handoff timeout", elapsed)
	}
}

// blockingSender blocks every Send until release is closed.
type blockingSender struct {
	release chan struct{}
}

func (s blockingSender) Send(clientID string, data []byte) bool {
	<-s.release
	return true
}

func (s blockingSender) IsConnected(clientID string) bool { return true }

func TestBridgeRestart(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)
	r.Register("t1", "c1")

	b := NewBridge(BridgeConfig{BufferSize: 4}, r, nil)
	ctx := context.Background()

	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := b.Start(ctx); !errors.Is(err, ErrBridgeRunning) {
		t.Errorf("second Start = %v, want ErrBridgeRunning", err)
	}
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer b.Stop(ctx)

	if !b.Emit("t1", 60, "after restart") {
		t.Fatal("Emit after restart = false")
	}
	waitFor(t, time.Second, func() bool { return len(sender.sent("c1")) == 1 })
}
