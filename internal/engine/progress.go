package engine

import "time"

// Stage describes where a compile job currently is.
type Stage string

const (
	StagePlan        Stage = "plan"
	StageMaterialize Stage = "materialize"
	StageCompile     Stage = "compile"
	StageAggregate   Stage = "aggregate"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusCached  Status = "cached"
)

// Event reports progress for one job (or for the whole run when Job is empty).
type Event struct {
	Job     string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines and must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
