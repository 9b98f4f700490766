package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the last N events in memory for post-mortem dumps
// after an aborted run.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	next   int
	count  int
	level  Level
}

// NewRingTracer creates a ring holding capacity events (4096 when <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *ev
	stored.Seq = NextSeq()
	t.events[t.next] = stored
	t.next = (t.next + 1) % len(t.events)
	t.count = min(t.count+1, len(t.events))
}

// Snapshot returns every stored event, oldest first.
func (t *RingTracer) Snapshot() []Event {
	return t.Tail(0)
}

// Tail returns the newest n events (all when n <= 0), oldest first.
func (t *RingTracer) Tail(n int) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > t.count {
		n = t.count
	}
	out := make([]Event, n)
	start := t.next - n
	if start < 0 {
		start += len(t.events)
	}
	for i := range out {
		out[i] = t.events[(start+i)%len(t.events)]
	}
	return out
}

// Dump writes the newest n events (all when n <= 0) to w.
func (t *RingTracer) Dump(w io.Writer, format Format, n int) error {
	events := t.Tail(n)
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush and Close are no-ops: everything is in memory.
func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
