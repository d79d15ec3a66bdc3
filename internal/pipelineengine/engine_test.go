package pipelineengine

import (
	"context"
	"testing"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/assembler"
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

type memStore struct {
	saved []*task.Task
}

func (s *memStore) SaveTask(ctx context.Context, t *task.Task) error {
	s.saved = append(s.saved, t)
	return nil
}

// scriptedBackend returns one canned hand-off-terminated response per
// call, in order, regardless of the request.
type scriptedBackend struct {
	responses []string
	calls     int
}

func (b *scriptedBackend) Invoke(ctx context.Context, req runner.Request) (runner.Result, error) {
	i := b.calls
	b.calls++
	if i >= len(b.responses) {
		i = len(b.responses) - 1
	}
	return runner.Result{FinalText: b.responses[i]}, nil
}

func handoffText(summary string) string {
	return "work done.\n\n## Hand-off\n\n- **Summary**: " + summary + "\n"
}

func newTestEngine(t *testing.T, backend runner.Backend) *Engine {
	t.Helper()
	r, err := assembler.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	eng := NewEngine(&memStore{}, r, runner.NewRunner(backend), nil)
	eng.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return eng
}

func TestRunStage_L1TaskRunsStraightThroughToDone(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		handoffText("planned it"),
		handoffText("implemented it"),
	}}
	eng := newTestEngine(t, backend)

	tk := &task.Task{ID: 1, Tier: task.TierL1, Status: task.StatusPlan}
	var statuses []StatusEventType
	obs := Observer{OnStatus: func(ev StatusTelemetry) { statuses = append(statuses, ev.Type) }}

	// approved=true satisfies plan's pause gate for this run; implement
	// never pauses, so the task runs straight through to done.
	if err := eng.RunStage(context.Background(), tk, obs, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status != task.StatusDone {
		t.Errorf("Status = %q, want done", tk.Status)
	}
	if tk.CompletedAt == nil {
		t.Errorf("expected CompletedAt to be set")
	}
	if backend.calls != 2 {
		t.Errorf("calls = %d, want 2 (plan, implement)", backend.calls)
	}
	if len(statuses) == 0 || statuses[len(statuses)-1] != StatusComplete {
		t.Errorf("expected final status event to be complete, got %v", statuses)
	}
}

func TestRunStage_PausingStageStopsAtAwaitingReview(t *testing.T) {
	backend := &scriptedBackend{responses: []string{handoffText("brainstormed")}}
	eng := newTestEngine(t, backend)

	tk := &task.Task{ID: 2, Tier: task.TierL2, Status: task.StatusBrainstorm}
	var statuses []StatusEventType
	obs := Observer{OnStatus: func(ev StatusTelemetry) { statuses = append(statuses, ev.Type) }}

	if err := eng.RunStage(context.Background(), tk, obs, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status != task.StatusAwaitingReview {
		t.Errorf("Status = %q, want awaiting_review", tk.Status)
	}
	if tk.PausedFromStatus != task.StatusBrainstorm {
		t.Errorf("PausedFromStatus = %q, want brainstorm", tk.PausedFromStatus)
	}
	if statuses[len(statuses)-1] != StatusAwaitingReview {
		t.Errorf("expected final status awaiting-review, got %v", statuses)
	}
	if backend.calls != 1 {
		t.Errorf("calls = %d, want 1 (should not run plan yet)", backend.calls)
	}
}

func TestRunStage_ApprovalResumesAndContinues(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		handoffText("planned it"),
		handoffText("implemented it"),
		handoffText("verified it"),
	}}
	eng := newTestEngine(t, backend)

	tk := &task.Task{ID: 3, Tier: task.TierL2, Status: task.StatusPlan}
	obs := Observer{}

	// First run: plan completes, pauses is true for plan, no approval -> awaiting_review.
	if err := eng.RunStage(context.Background(), tk, obs, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status != task.StatusAwaitingReview {
		t.Fatalf("expected awaiting_review after plan, got %q", tk.Status)
	}

	// Approve: should advance through implement (no pause) and verify (pauses).
	if err := eng.RunStage(context.Background(), tk, obs, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status != task.StatusAwaitingReview {
		t.Fatalf("expected awaiting_review after verify, got %q", tk.Status)
	}
	if tk.PausedFromStatus != task.StatusVerify {
		t.Errorf("PausedFromStatus = %q, want verify", tk.PausedFromStatus)
	}
}

func TestRunStage_CircuitBreakerBlocksTask(t *testing.T) {
	backend := &scriptedBackend{responses: []string{handoffText("planned it")}}
	eng := newTestEngine(t, backend)

	tk := &task.Task{
		ID: 4, Tier: task.TierL1, Status: task.StatusPlan,
		Counters: task.Counters{PlanReviewCount: circuitBreakerThreshold},
	}
	var statuses []StatusEventType
	obs := Observer{OnStatus: func(ev StatusTelemetry) { statuses = append(statuses, ev.Type) }}

	// The breaker is tripped against the *next* stage (implement), not
	// plan itself, since plan is the stage currently running and the
	// breaker only matters when re-entering a stage after a rejection.
	// approved=true clears plan's own pause gate so the run reaches the
	// CanTransition check against implement.
	tk.Counters = task.Counters{ImplReviewCount: circuitBreakerThreshold}

	if err := eng.RunStage(context.Background(), tk, obs, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status != task.StatusBlocked {
		t.Errorf("Status = %q, want blocked", tk.Status)
	}
	if statuses[len(statuses)-1] != StatusCircuitBreaker {
		t.Errorf("expected final status circuit-breaker, got %v", statuses)
	}
}
