package observ

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Phase is one sequential step of a run (read, plan, compile, aggregate,
// render).
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// bucket accumulates work that runs in parallel inside a phase, e.g. the
// compile jobs of one outcome. Its total may exceed the phase wall time.
type bucket struct {
	count int
	dur   time.Duration
	max   time.Duration
}

// Timer records run phases and per-job work. Safe for concurrent use; a
// nil *Timer records nothing.
type Timer struct {
	mu      sync.Mutex
	phases  []Phase
	buckets map[string]*bucket
}

func NewTimer() *Timer {
	return &Timer{phases: make([]Phase, 0, 8), buckets: make(map[string]*bucket)}
}

// Begin starts a phase and returns its index for End.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase. Unknown indexes are ignored.
func (t *Timer) End(idx int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Count adds one unit of work of duration d to the named bucket.
func (t *Timer) Count(name string, d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[name]
	if !ok {
		b = &bucket{}
		t.buckets[name] = b
	}
	b.count++
	b.dur += d
	b.max = max(b.max, d)
}

// PhaseReport представляет сжатую информацию о фазе таймера для сериализации.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// WorkReport is the accumulated time of one bucket.
type WorkReport struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// Report описывает агрегированные данные таймера. TotalMS sums phases only;
// work buckets overlap with them.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
	Work    []WorkReport  `json:"work,omitempty"`
}

// Report returns phases in start order and buckets sorted by name.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 && len(t.buckets) == 0 {
		return Report{}
	}
	rep := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, p := range t.phases {
		total += p.Dur
		rep.Phases[i] = PhaseReport{Name: p.Name, DurationMS: millis(p.Dur), Note: p.Note}
	}
	rep.TotalMS = millis(total)
	for name, b := range t.buckets {
		rep.Work = append(rep.Work, WorkReport{Name: name, Count: b.count, TotalMS: millis(b.dur), MaxMS: millis(b.max)})
	}
	slices.SortFunc(rep.Work, func(a, b WorkReport) int { return strings.Compare(a.Name, b.Name) })
	return rep
}

// Summary renders the report for a terminal.
func (t *Timer) Summary() string {
	rep := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range rep.Phases {
		fmt.Fprintf(&b, "  %-12s %9.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-12s %9.2f ms\n", "total", rep.TotalMS)
	if len(rep.Work) > 0 {
		b.WriteString("jobs:\n")
		for _, w := range rep.Work {
			fmt.Fprintf(&b, "  %-12s %5d  %9.2f ms total  %9.2f ms max\n", w.Name, w.Count, w.TotalMS, w.MaxMS)
		}
	}
	return b.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
