package ui

import (
	"strings"
	"testing"

	"fencecheck/internal/engine"
)

func TestApplyEventTracksJobs(t *testing.T) {
	m := NewProgressModel("fencecheck", []string{"a_1@x86", "a_2@x86"}, nil).(*progressModel)

	m.applyEvent(engine.Event{Job: "a_1@x86", Stage: engine.StageCompile, Status: engine.StatusWorking})
	if got := m.items[0].status; got != "compiling" {
		t.Errorf("expected compiling, got %q", got)
	}
	m.applyEvent(engine.Event{Job: "a_1@x86", Stage: engine.StageCompile, Status: engine.StatusFailed})
	m.applyEvent(engine.Event{Job: "a_2@x86", Stage: engine.StageCompile, Status: engine.StatusCached})
	// late events for finished jobs are ignored
	m.applyEvent(engine.Event{Job: "a_1@x86", Stage: engine.StageCompile, Status: engine.StatusWorking})

	if m.finished != 2 || m.failed != 1 {
		t.Errorf("expected 2 finished and 1 failed, got %d and %d", m.finished, m.failed)
	}
	if m.items[0].status != "failed" || m.items[1].status != "cached" {
		t.Errorf("unexpected statuses %q %q", m.items[0].status, m.items[1].status)
	}
	view := m.View()
	if !strings.Contains(view, "2/2") || !strings.Contains(view, "a_2@x86") {
		t.Errorf("unexpected view:\n%s", view)
	}
}

func TestUnknownJobIsAppended(t *testing.T) {
	m := NewProgressModel("fencecheck", nil, nil).(*progressModel)
	m.applyEvent(engine.Event{Job: "late@x86", Stage: engine.StagePlan, Status: engine.StatusQueued})
	if len(m.items) != 1 || m.items[0].status != "queued" {
		t.Errorf("expected appended queued job, got %+v", m.items)
	}
	// run-level events carry no job
	m.applyEvent(engine.Event{Stage: engine.StageAggregate, Status: engine.StatusDone})
	if len(m.items) != 1 {
		t.Errorf("run-level event must not add a row")
	}
}

func TestVisibleCapsRows(t *testing.T) {
	var jobs []string
	for i := range 30 {
		jobs = append(jobs, "job"+string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	m := NewProgressModel("fencecheck", jobs, nil).(*progressModel)
	m.applyEvent(engine.Event{Job: jobs[0], Stage: engine.StageCompile, Status: engine.StatusDone})
	vis := m.visible()
	if len(vis) != maxVisible {
		t.Fatalf("expected %d rows, got %d", maxVisible, len(vis))
	}
	for _, it := range vis {
		if it.final {
			t.Errorf("finished job shown while %d jobs still pending", len(jobs)-1)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("expected abc..., got %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("expected unchanged, got %q", got)
	}
}
