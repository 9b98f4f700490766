package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"off": LevelOff, "ERROR": LevelError, "phase": LevelPhase, "detail": LevelDetail, "debug": LevelDebug} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestShouldEmit(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeRun, false},
		{LevelPhase, ScopeStage, true},
		{LevelPhase, ScopeJob, false},
		{LevelDetail, ScopeJob, true},
		{LevelDetail, ScopeCommand, false},
		{LevelDebug, ScopeCommand, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%v.ShouldEmit(%v) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestSpansNestThroughContext(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)
	ctx := WithTracer(context.Background(), tr)

	ctx, run := StartSpan(ctx, ScopeRun, "validate")
	jobCtx, job := StartSpan(ctx, ScopeJob, "job:a_1@x86_64")
	// below the level: no event, no new span in the context
	cmdCtx, cmd := StartSpan(jobCtx, ScopeCommand, "cargo")
	if cmd.ID() != 0 || CurrentSpan(cmdCtx) != CurrentSpan(jobCtx) {
		t.Error("filtered span must not replace the current span")
	}
	cmd.End("")
	job.WithExtra("target", "x86_64").End("passed")
	run.End("")

	var events []jsonEvent
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev jsonEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid ndjson line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d:\n%s", len(events), buf.String())
	}
	if events[1].ParentID != events[0].SpanID {
		t.Errorf("job span should be a child of the run span: %+v", events[1])
	}
	if events[2].Kind != "end" || events[2].Name != "job:a_1@x86_64" {
		t.Errorf("unexpected third event %+v", events[2])
	}
	if events[2].Detail != "passed" || events[2].Extra["target"] != "x86_64" {
		t.Errorf("end event lost detail or extras: %+v", events[2])
	}
}

func TestRingKeepsNewest(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(ctx, ScopeJob, name, "")
	}
	snap := ring.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 events, got %d", len(snap))
	}
	var names []string
	for _, ev := range snap {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ""); got != "cde" {
		t.Errorf("expected newest events oldest-first, got %q", got)
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatText, 0); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 3 || !strings.Contains(buf.String(), "[job    ]") {
		t.Errorf("unexpected dump:\n%s", buf.String())
	}
}

func TestMultiTracerFansOut(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(8, LevelPhase)
	multi := NewMultiTracer(LevelPhase, NewStreamTracer(&buf, LevelPhase, FormatText), ring)
	if multi.Ring() != ring {
		t.Fatal("Ring() should return the ring child")
	}
	Point(WithTracer(context.Background(), multi), ScopeStage, "plan", "3 jobs")
	if len(ring.Snapshot()) != 1 || !strings.Contains(buf.String(), "plan (3 jobs)") {
		t.Errorf("event not delivered to every child: ring=%d stream=%q", len(ring.Snapshot()), buf.String())
	}
}

func TestNewPicksFormatFromPath(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr != Nop {
		t.Fatalf("level off should yield Nop, got %v, %v", tr, err)
	}
	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeStream, Output: &buf, OutputPath: "run.ndjson"})
	if err != nil {
		t.Fatal(err)
	}
	Point(WithTracer(context.Background(), tr), ScopeRun, "start", "")
	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("expected NDJSON for .ndjson path, got %q", buf.String())
	}
}

func TestHeartbeatReportsOpenSpans(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	job := Begin(ring, ScopeJob, "job:a_1@x86_64", 0)
	h := StartHeartbeat(ring, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	h.Stop()
	h.Stop()
	job.End("")

	var beat *Event
	for _, ev := range ring.Snapshot() {
		if ev.Kind == KindHeartbeat {
			beat = &ev
			break
		}
	}
	if beat == nil {
		t.Fatal("no heartbeat emitted")
	}
	if beat.Extra["jobs"] == "0" || beat.Extra["jobs"] == "" {
		t.Errorf("heartbeat should count the open job, got %v", beat.Extra)
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Error("disabled tracer must not start a heartbeat")
	}
}

func TestSpanEndsOnce(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatText)
	s := Begin(tr, ScopeCommand, "exec:cargo", 0)
	s.Fail(errors.New("exit status 101"))
	s.End("done")
	if d := s.End("again"); d != 0 {
		t.Error("second End must be a no-op")
	}
	out := buf.String()
	if strings.Count(out, "exec:cargo") != 2 || !strings.Contains(out, "error=exit status 101") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRingTail(t *testing.T) {
	ring := NewRingTracer(4, LevelDebug)
	if got := ring.Tail(2); len(got) != 0 {
		t.Fatalf("empty ring returned %d events", len(got))
	}
	for _, name := range []string{"a", "b", "c"} {
		ring.Emit(&Event{Kind: KindPoint, Scope: ScopeJob, Name: name})
	}
	tail := ring.Tail(2)
	if len(tail) != 2 || tail[0].Name != "b" || tail[1].Name != "c" {
		t.Errorf("unexpected tail %+v", tail)
	}
}
