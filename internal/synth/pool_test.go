package synth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeNotifier records lifecycle sends.
type fakeNotifier struct {
	mu        sync.Mutex
	starts    []string
	completes map[string]string
	errs      map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		completes: make(map[string]string),
		errs:      make(map[string]string),
	}
}

func (n *fakeNotifier) SendStart(taskID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.starts = append(n.starts, taskID)
	return true
}

func (n *fakeNotifier) SendComplete(taskID, result string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completes[taskID] = result
	return true
}

func (n *fakeNotifier) SendError(taskID, errText string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs[taskID] = errText
	return true
}

func (n *fakeNotifier) completed(taskID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.completes[taskID]
	return r, ok
}

func (n *fakeNotifier) failed(taskID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.errs[taskID]
	return e, ok
}

// fakeEmitter records progress emitted through the bridge boundary.
type fakeEmitter struct {
	mu      sync.Mutex
	updates []float64
}

func (e *fakeEmitter) Emit(taskID string, progress float64, message string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates = append(e.updates, progress)
	return true
}

func (e *fakeEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.updates)
}

// funcSynth adapts a function to Synthesizer.
type funcSynth func(ctx context.Context, req Request, progress ProgressFunc) (Result, error)

func (f funcSynth) Synthesize(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	return f(ctx, req, progress)
}

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

func TestPoolRunsJob(t *testing.T) {
	notifier := newFakeNotifier()
	emitter := &fakeEmitter{}

	engine := funcSynth(func(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
		progress(0.5, "halfway")
		progress(1.0, "done")
		return Result{AudioURL: "/outputs/" + req.TaskID + ".wav"}, nil
	})

	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 4}, engine, notifier, emitter, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.Stop(context.Background())

	if !pool.Submit(Request{TaskID: "t1", ClientID: "c1", Text: "hello"}) {
		t.Fatal("Submit returned false")
	}

	waitFor(t, time.Second, func() bool {
		_, ok := notifier.completed("t1")
		return ok
	})

	result, _ := notifier.completed("t1")
	if result != "/outputs/t1.wav" {
		t.Errorf("complete result = %q, want /outputs/t1.wav", result)
	}
	if emitter.count() != 2 {
		t.Errorf("progress updates = %d, want 2", emitter.count())
	}
	if len(notifier.starts) != 1 || notifier.starts[0] != "t1" {
		t.Errorf("starts = %v, want [t1]", notifier.starts)
	}
}

func TestPoolJobFailure(t *testing.T) {
	notifier := newFakeNotifier()

	engine := funcSynth(func(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
		return Result{}, errors.New("model exploded")
	})

	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 4}, engine, notifier, &fakeEmitter{}, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.Stop(context.Background())

	pool.Submit(Request{TaskID: "t2", Text: "hello"})

	waitFor(t, time.Second, func() bool {
		_, ok := notifier.failed("t2")
		return ok
	})

	errText, _ := notifier.failed("t2")
	if errText != "model exploded" {
		t.Errorf("error text = %q, want model exploded", errText)
	}
	if _, ok := notifier.completed("t2"); ok {
		t.Error("failed job also sent complete")
	}
}

func TestPoolQueueFull(t *testing.T) {
	notifier := newFakeNotifier()
	block := make(chan struct{})

	engine := funcSynth(func(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
		<-block
		return Result{}, nil
	})

	pool := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, engine, notifier, &fakeEmitter{}, nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		close(block)
		pool.Stop(context.Background())
	}()

	// First job occupies the worker, second fills the queue.
	pool.Submit(Request{TaskID: "busy"})
	waitFor(t, time.Second, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.starts) == 1
	})
	pool.Submit(Request{TaskID: "queued"})

	if pool.Submit(Request{TaskID: "rejected"}) {
		t.Error("Submit with full queue = true, want false")
	}
	if depth := pool.QueueDepth(); depth != 1 {
		t.Errorf("QueueDepth = %d, want 1", depth)
	}
}

func TestPoolSubmitWhenStopped(t *testing.T) {
	pool := NewPool(PoolConfig{}, funcSynth(func(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
		return Result{}, nil
	}), newFakeNotifier(), &fakeEmitter{}, nil)

	if pool.Submit(Request{TaskID: "t"}) {
		t.Error("Submit on stopped pool = true, want false")
	}
}

func TestPoolRestart(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1}, funcSynth(func(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
		return Result{}, nil
	}), newFakeNotifier(), &fakeEmitter{}, nil)

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := pool.Start(ctx); !errors.Is(err, ErrPoolRunning) {
		t.Errorf("second Start = %v, want ErrPoolRunning", err)
	}
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	pool.Stop(ctx)
}
