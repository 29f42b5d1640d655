package livechat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

// manualClock fires timers only when Advance is called.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clk       *manualClock
	at        time.Time
	d         time.Duration
	f         func()
	stopped   bool
	fired     bool
	stopCalls int
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clk: c, at: c.now.Add(d), d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.stopCalls++
	return true
}

// Advance moves time forward and runs every due timer in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	slices.SortStableFunc(due, func(a, b *manualTimer) int { return a.at.Compare(b.at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the durations of timers that are neither stopped nor fired.
func (c *manualClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

func (c *manualClock) all() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.timers)
}

type dropError struct{ reason string }

func (e dropError) Error() string            { return "dropped: " + e.reason }
func (e dropError) DisconnectReason() string { return e.reason }

// fakeSocket records writes and replays pushed frames to the read loop.
type fakeSocket struct {
	mu         sync.Mutex
	written    []Frame
	closed     bool
	closeCount int
	inbound    chan Frame
	drops      chan error

	// beforeWrite runs ahead of every write, outside the socket lock.
	beforeWrite func()
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbound: make(chan Frame, 64), drops: make(chan error, 1)}
}

func (s *fakeSocket) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case f := <-s.inbound:
		return f, nil
	case err := <-s.drops:
		return Frame{}, err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (s *fakeSocket) WriteFrame(_ context.Context, f Frame) error {
	s.mu.Lock()
	hook := s.beforeWrite
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("write on closed socket")
	}
	s.written = append(s.written, f)
	return nil
}

func (s *fakeSocket) Close(string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCount++
	return nil
}

func (s *fakeSocket) push(t *testing.T, event string, data any) {
	t.Helper()
	f, err := NewFrame(event, data)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	s.inbound <- f
}

func (s *fakeSocket) drop(reason string) { s.drops <- dropError{reason: reason} }

func (s *fakeSocket) setBeforeWrite(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeWrite = fn
}

func (s *fakeSocket) joinedRooms(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, f := range s.frames(emitJoinRoom) {
		var p roomPayload
		if err := UnmarshalData(f.Data, &p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, p.RoomID)
	}
	return out
}

func (s *fakeSocket) frames(event string) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Frame
	for _, f := range s.written {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeTransport struct {
	mu       sync.Mutex
	dials    []Handshake
	failures int // remaining dials to fail; -1 fails forever
	sockets  []*fakeSocket
}

func (t *fakeTransport) Dial(_ context.Context, hs Handshake) (Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials = append(t.dials, hs)
	if t.failures != 0 {
		if t.failures > 0 {
			t.failures--
		}
		return nil, errors.New("connection refused")
	}
	s := newFakeSocket()
	t.sockets = append(t.sockets, s)
	return s, nil
}

func (t *fakeTransport) setFailures(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = n
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

func (t *fakeTransport) socket(i int) *fakeSocket {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 {
		i += len(t.sockets)
	}
	return t.sockets[i]
}

func (t *fakeTransport) socketCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sockets)
}

// recorder collects every published event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ConnectionState
	for _, ev := range r.events {
		if s, ok := ev.(StateEvent); ok && !s.Terminal {
			out = append(out, s.NewState)
		}
	}
	return out
}

func (r *recorder) stateEvents() []StateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StateEvent
	for _, ev := range r.events {
		if s, ok := ev.(StateEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) typing() []TypingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TypingEvent
	for _, ev := range r.events {
		if s, ok := ev.(TypingEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) count(match func(Event) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

type harness struct {
	client    *Client
	clock     *manualClock
	transport *fakeTransport
	rec       *recorder
}

var alice = User{ID: "u-alice", Name: "Alice", Email: "alice@example.edu", Role: "student"}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = "ws://chat.test/ws"
	h := &harness{clock: newManualClock(), transport: &fakeTransport{}, rec: &recorder{}}
	opts = append([]Option{WithClock(h.clock), WithTransport(h.transport)}, opts...)
	c, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.Subscribe(h.rec.record)
	h.client = c
	t.Cleanup(c.Disconnect)
	return h
}

func (h *harness) connect(t *testing.T) *fakeSocket {
	t.Helper()
	if err := h.client.Initialize(context.Background(), alice); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := h.client.Status(); got != StateConnected {
		t.Fatalf("status after Initialize = %v, want connected", got)
	}
	return h.transport.socket(-1)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
