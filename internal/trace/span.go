package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64

	// open spans per scope, read by the heartbeat
	openSpans [ScopeCommand + 1]atomic.Int64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

func nextSpanID() uint64 { return spanCounter.Add(1) }

// goid parses the current goroutine id out of the stack header
// ("goroutine 123 [running]:"). Only spans that can run concurrently
// (jobs and commands) pay for it.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	rest, ok := strings.CutPrefix(string(buf[:n]), "goroutine ")
	if !ok {
		return 0
	}
	num, _, ok := strings.Cut(rest, " ")
	if !ok {
		return 0
	}
	id, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func gidFor(scope Scope) uint64 {
	if scope >= ScopeJob {
		return goid()
	}
	return 0
}

// Span is an open interval. A Span returned for a filtered scope is inert:
// every method is a no-op and ID is 0.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	gid     uint64
	scope   Scope
	name    string
	started time.Time

	mu    sync.Mutex
	extra map[string]string
	ended bool
}

var inert = &Span{}

// Begin emits a begin event under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return inert
	}
	s := &Span{
		tracer:  t,
		id:      nextSpanID(),
		parent:  parent,
		gid:     gidFor(scope),
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	openSpans[scope].Add(1)
	t.Emit(&Event{
		Time:     s.started,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		GID:      s.gid,
		Name:     name,
	})
	return s
}

// End emits the end event once and returns the span duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return 0
	}
	s.ended = true
	extra := s.extra
	s.mu.Unlock()

	openSpans[s.scope].Add(-1)
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
		Extra:    extra,
	})
	return dur
}

// WithExtra attaches a key/value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// Fail records err on the end event.
func (s *Span) Fail(err error) *Span {
	if err == nil {
		return s
	}
	return s.WithExtra("error", err.Error())
}

// ID returns the span ID, 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// OpenSpans reports how many spans of scope have begun but not ended.
func OpenSpans(scope Scope) int64 {
	if int(scope) >= len(openSpans) {
		return 0
	}
	return openSpans[scope].Load()
}
