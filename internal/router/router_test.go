package router

import (
	"sync"
	"testing"

	"github.com/voxgate/voxgate/internal/protocol"
)

// fakeSender records every delivered message, decoded from the wire.
type fakeSender struct {
	mu           sync.Mutex
	messages     map[string][]protocol.Message // clientID -> deliveries
	disconnected map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		messages:     make(map[string][]protocol.Message),
		disconnected: make(map[string]bool),
	}
}

func (s *fakeSender) Send(clientID string, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected[clientID] {
		return false
	}
	msg, err := protocol.Parse(data)
	if err != nil {
		panic("router sent unparseable message: " + err.Error())
	}
	s.messages[clientID] = append(s.messages[clientID], msg)
	return true
}

func (s *fakeSender) IsConnected(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disconnected[clientID]
}

func (s *fakeSender) disconnect(clientID string) {
	s.mu.Lock()
	s.disconnected[clientID] = true
	s.mu.Unlock()
}

func (s *fakeSender) sent(clientID string) []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.messages[clientID]...)
}

func TestSendStart(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")

	if !r.SendStart("t1") {
		t.Fatal("SendStart = false")
	}

	msgs := sender.sent("c1")
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeStart || msgs[0].TaskID != "t1" {
		t.Errorf("sent = %+v, want one start message for t1", msgs)
	}
}

func TestSendForUnknownTaskIsNoOp(t *testing.T) {
	r := New(newFakeSender(), nil)

	if r.SendStart("ghost") {
		t.Error("SendStart for unknown task = true")
	}
	if r.SendProgress("ghost", 50, "hi") {
		t.Error("SendProgress for unknown task = true")
	}
	if r.SendComplete("ghost", "result") {
		t.Error("SendComplete for unknown task = true")
	}
	if r.SendError("ghost", "err") {
		t.Error("SendError for unknown task = true")
	}
}

func TestProgressMonotonicity(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")

	results := []bool{
		r.SendProgress("t1", 10, "a"),
		r.SendProgress("t1", 5, "regression"),
		r.SendProgress("t1", 20, "b"),
	}
	want := []bool{true, false, true}
	for i := range results {
		if results[i] != want[i] {
			t.Errorf("SendProgress #%d = %v, want %v", i, results[i], want[i])
		}
	}

	msgs := sender.sent("c1")
	if len(msgs) != 2 {
		t.Fatalf("delivered = %d messages, want 2", len(msgs))
	}
	if *msgs[0].Progress != 10 || *msgs[1].Progress != 20 {
		t.Errorf("delivered progress = %v, %v, want 10, 20", *msgs[0].Progress, *msgs[1].Progress)
	}
}

func TestProgressEqualValueAllowed(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")
	r.SendProgress("t1", 50, "a")

	if !r.SendProgress("t1", 50, "b") {
		t.Error("repeated equal progress dropped, want delivered")
	}
}

func TestCompleteRemovesBinding(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")

	if !r.SendComplete("t1", "/outputs/t1.wav") {
		t.Fatal("SendComplete = false")
	}
	if r.TaskCount() != 0 {
		t.Errorf("TaskCount = %d after complete, want 0", r.TaskCount())
	}

	// Second terminal call is a no-op: at most one real removal.
	if r.SendComplete("t1", "/outputs/t1.wav") {
		t.Error("second SendComplete = true, want false")
	}
	if len(sender.sent("c1")) != 1 {
		t.Errorf("delivered = %d messages, want 1", len(sender.sent("c1")))
	}
}

func TestErrorRemovesBindingEvenWhenDeliveryFails(t *testing.T) {
	sender := newFakeSender()
	sender.disconnect("c1")
	r := New(sender, nil)

	r.Register("t1", "c1")

	// Delivery fails but the binding is gone regardless.
	if r.SendError("t1", "boom") {
		t.Error("SendError to disconnected client = true, want false")
	}
	if r.TaskCount() != 0 {
		t.Errorf("TaskCount = %d, want 0", r.TaskCount())
	}
	if r.SendError("t1", "boom") {
		t.Error("second SendError = true, want false")
	}
}

func TestDisconnectedClientTasksReturnFalse(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")
	r.Register("t2", "c1")
	sender.disconnect("c1")

	if r.SendProgress("t1", 10, "a") {
		t.Error("SendProgress t1 after disconnect = true")
	}
	if r.SendProgress("t2", 10, "a") {
		t.Error("SendProgress t2 after disconnect = true")
	}

	// Bindings are cleaned lazily, not swept on disconnect.
	if r.TaskCount() != 2 {
		t.Errorf("TaskCount = %d, want 2 (lazy cleanup)", r.TaskCount())
	}
}

func TestUnregister(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")

	if !r.Unregister("t1") {
		t.Error("Unregister = false for registered task")
	}
	if r.Unregister("t1") {
		t.Error("second Unregister = true, want false")
	}
	if len(sender.sent("c1")) != 0 {
		t.Error("Unregister delivered a message")
	}
}

func TestMultipleTasksPerClient(t *testing.T) {
	sender := newFakeSender()
	r := New(sender, nil)

	r.Register("t1", "c1")
	r.Register("t2", "c1")
	r.Register("t3", "c2")

	r.SendProgress("t1", 10, "a")
	r.SendProgress("t2", 20, "b")
	r.SendProgress("t3", 30, "c")

	if n := len(sender.sent("c1")); n != 2 {
		t.Errorf("c1 received %d messages, want 2", n)
	}
	if n := len(sender.sent("c2")); n != 1 {
		t.Errorf("c2 received %d messages, want 1", n)
	}
}
