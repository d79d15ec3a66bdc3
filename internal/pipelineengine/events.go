package pipelineengine

import (
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// StatusEventType classifies a status telemetry event (spec §4.E.5).
type StatusEventType string

const (
	StatusStart          StatusEventType = "start"
	StatusAwaitingReview StatusEventType = "awaiting-review"
	StatusComplete       StatusEventType = "complete"
	StatusErrorEvent     StatusEventType = "error"
	StatusPause          StatusEventType = "pause"
	StatusUsagePaused    StatusEventType = "usage-paused"
	StatusCircuitBreaker StatusEventType = "circuit-breaker"
)

// StreamTelemetry mirrors a Runner stream event, annotated with the
// owning task id (spec §4.E.5 "stream events mirror Runner stream
// events verbatim ... annotated with task id").
type StreamTelemetry struct {
	TaskID int64
	Event  runner.StreamEvent
}

// StatusTelemetry fires on every status transition.
type StatusTelemetry struct {
	TaskID int64
	Type   StatusEventType
	Detail string
}

// ContextTelemetry fires on every parsed context-window event a
// session reports, for the Scheduler's context-handoff gate (spec
// §4.F "Context handoff gate", §6 "context-update").
type ContextTelemetry struct {
	TaskID     int64
	Stage      task.Stage
	UsedTokens int
	MaxTokens  int
}

// TodosTelemetry fires on any todo mutation.
type TodosTelemetry struct {
	TaskID int64
	Stage  task.Stage
	Todos  []task.TodoItem
}

// StalledTelemetry fires when a session produces no text/tool_use
// event within the stall window (spec §4.E.6).
type StalledTelemetry struct {
	TaskID int64
	Stage  task.Stage
}

// Observer receives the engine's telemetry streams. Every method must
// return promptly; the engine does not buffer beyond one pending call
// per stream. A nil field is treated as a no-op for that stream.
type Observer struct {
	OnStream  func(StreamTelemetry)
	OnStatus  func(StatusTelemetry)
	OnTodos   func(TodosTelemetry)
	OnStalled func(StalledTelemetry)
	OnContext func(ContextTelemetry)
	// OnSnapshot fires after any transition so external read-models can
	// refresh without polling (spec §4.E.5).
	OnSnapshot func(*task.Task)
}

func (o Observer) emitStream(ev StreamTelemetry) {
	if o.OnStream != nil {
		o.OnStream(ev)
	}
}

func (o Observer) emitStatus(ev StatusTelemetry) {
	if o.OnStatus != nil {
		o.OnStatus(ev)
	}
}

func (o Observer) emitTodos(ev TodosTelemetry) {
	if o.OnTodos != nil {
		o.OnTodos(ev)
	}
}

func (o Observer) emitStalled(ev StalledTelemetry) {
	if o.OnStalled != nil {
		o.OnStalled(ev)
	}
}

func (o Observer) emitContext(ev ContextTelemetry) {
	if o.OnContext != nil {
		o.OnContext(ev)
	}
}

func (o Observer) emitSnapshot(tk *task.Task) {
	if o.OnSnapshot != nil {
		o.OnSnapshot(tk)
	}
}
