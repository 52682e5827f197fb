package engine

import (
	"context"

	"github.com/nhle/syncbridge/internal/model"
)

// Phase names reported in progress events.
const (
	PhaseSourceToTarget = "source_to_target"
	PhaseTargetToSource = "target_to_source"
)

// Event is one entry in the ordered stream a run emits. The same
// orchestrator serves buffered and streaming callers; buffered callers
// simply use a NullSink and read the RunResult.
type Event interface {
	event()
}

// LogEvent carries one run log line.
type LogEvent struct {
	Message string
}

// ProgressEvent reports position within a pass.
type ProgressEvent struct {
	Current int
	Total   int
	Phase   string
}

// ItemEvent carries the outcome of one processed item.
type ItemEvent struct {
	Outcome model.ItemOutcome
}

// CompleteEvent terminates a successful stream with the full result.
type CompleteEvent struct {
	Result *model.RunResult
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Message string
}

func (LogEvent) event()      {}
func (ProgressEvent) event() {}
func (ItemEvent) event()     {}
func (CompleteEvent) event() {}
func (ErrorEvent) event()    {}

// Sink receives run events in order.
type Sink interface {
	Send(Event)
}

// NullSink discards all events.
type NullSink struct{}

func (NullSink) Send(Event) {}

// ChannelSink forwards events to a channel in order. A send on a full
// buffer blocks only until ctx is cancelled, so a consumer that stops
// draining cannot wedge the producing run; events emitted after
// cancellation are dropped.
type ChannelSink struct {
	C    chan Event
	done <-chan struct{}
}

// NewChannelSink creates a sink over a channel with the given buffer.
// Cancelling ctx releases any blocked send.
func NewChannelSink(ctx context.Context, buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer), done: ctx.Done()}
}

func (s *ChannelSink) Send(e Event) {
	select {
	case s.C <- e:
	case <-s.done:
	}
}

// Close closes the underlying channel once no more events will be sent.
func (s *ChannelSink) Close() {
	close(s.C)
}
