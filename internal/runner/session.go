package runner

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// UsageCounters accumulates token usage for one model invocation.
type UsageCounters struct {
	InputTokens  int
	OutputTokens int
}

// Request is everything one model invocation needs (spec §4.D
// "Input"). OnStream and OnApprovalRequest are called synchronously
// from the Runner's goroutine; callers that need asynchronous
// resolution (e.g. a human-in-the-loop approval) should block inside
// OnApprovalRequest themselves, for example on an ApprovalRegistry
// channel.
type Request struct {
	Prompt       string
	Model        string
	WorkingDir   string
	MaxTurns     int
	Timeout      time.Duration
	ResumeHandle string
	OwningTaskID int64

	OnStream          func(ctx context.Context, ev StreamEvent)
	OnApprovalRequest func(ctx context.Context, toolName string, input json.RawMessage) ApprovalDecision
}

// Result is the terminating outcome of a model invocation (spec §4.D
// "Output").
type Result struct {
	FinalText    string
	Usage        UsageCounters
	ResumeHandle string
	Cancelled    bool
	Err          error
}

// RetryableError marks a backend failure the Runner should retry
// after a back-off delay rather than surface to the caller (spec §4.D
// "Resilience"). RetryAfterSeconds, when > 0, overrides the Runner's
// own exponential back-off.
type RetryableError struct {
	RetryAfterSeconds int
	Err               error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Backend is the vendor-specific adapter a Runner drives. A single
// call to Invoke corresponds to one attempt; the Runner is
// responsible for retrying on a *RetryableError. Backend implementations
// own tool dispatch, native tool_use/tool_result events, and calling
// req.OnApprovalRequest for side-effecting tools.
type Backend interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// Runner drives a Backend through retry/back-off and layers inline
// tool-call interception on top of its text events (spec §4.D).
type Runner struct {
	backend Backend
}

// NewRunner creates a Runner over backend.
func NewRunner(backend Backend) *Runner {
	return &Runner{backend: backend}
}

// Run executes req against the backend, retrying retryable failures
// with cancellation-aware back-off until ctx is done or the backend
// returns a terminal (non-retryable) result. The retry counter itself
// is unbounded here by design (spec §4.D: "The retry counter is
// bounded by the engine, not the Runner") — callers that want a cap
// enforce it by cancelling ctx.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	wrapped := req
	wrapped.OnStream = interceptingStream(req.OnStream)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return Result{Cancelled: true, ResumeHandle: wrapped.ResumeHandle}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if req.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		}
		res, err := r.backend.Invoke(callCtx, wrapped)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return res
		}

		if errors.Is(ctx.Err(), context.Canceled) {
			return Result{Cancelled: true, ResumeHandle: wrapped.ResumeHandle}
		}

		var retryable *RetryableError
		if errors.As(err, &retryable) {
			delay := BackoffDelay(retryable.RetryAfterSeconds, attempt)
			abortableSleep(ctx, delay)
			if ctx.Err() != nil {
				return Result{Cancelled: true, ResumeHandle: wrapped.ResumeHandle}
			}
			attempt++
			if res.ResumeHandle != "" {
				wrapped.ResumeHandle = res.ResumeHandle
			}
			continue
		}

		return Result{Err: err, ResumeHandle: wrapped.ResumeHandle}
	}
}

// interceptingStream wraps a stream callback so that, for every text
// event, it also synthesizes tool_use events for any inline
// `<tool_call name="...">` blocks found in the text (spec §4.D "Tool
// interception"). The original text event is still forwarded
// unmodified.
func interceptingStream(onStream func(context.Context, StreamEvent)) func(context.Context, StreamEvent) {
	if onStream == nil {
		return func(context.Context, StreamEvent) {}
	}
	return func(ctx context.Context, ev StreamEvent) {
		if ev.Type == EventText {
			for _, call := range ExtractInlineToolCalls(ev.Content) {
				onStream(ctx, StreamEvent{
					Type:      EventToolUse,
					Content:   call.Raw,
					ToolName:  call.Name,
					ToolInput: call.Payload,
				})
			}
		}
		onStream(ctx, ev)
	}
}
