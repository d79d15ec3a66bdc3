package pipelineengine

import (
	"testing"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/pipelineerr"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

func mkL2Task() *task.Task {
	return &task.Task{ID: 1, Tier: task.TierL2, Status: task.StatusPlan}
}

func TestGateSatisfied_NoPauseAlwaysTrue(t *testing.T) {
	cfg := StageConfig{Pauses: false}
	if !GateSatisfied(&task.Task{}, cfg, false) {
		t.Fatalf("expected gate satisfied when stage doesn't pause")
	}
}

func TestGateSatisfied_ExplicitApproval(t *testing.T) {
	cfg := StageConfig{Pauses: true}
	if !GateSatisfied(&task.Task{}, cfg, true) {
		t.Fatalf("expected explicit approval to satisfy gate")
	}
}

func TestGateSatisfied_AutoModeAboveThreshold(t *testing.T) {
	cfg := StageConfig{Pauses: true, AutoApproveThreshold: 4.0}
	tk := &task.Task{AutoMode: true, Outputs: task.StageOutputs{ReviewScore: 4.5}}
	if !GateSatisfied(tk, cfg, false) {
		t.Fatalf("expected auto-mode score above threshold to satisfy gate")
	}
}

func TestGateSatisfied_AutoModeBelowThreshold(t *testing.T) {
	cfg := StageConfig{Pauses: true, AutoApproveThreshold: 4.0}
	tk := &task.Task{AutoMode: true, Outputs: task.StageOutputs{ReviewScore: 3.0}}
	if GateSatisfied(tk, cfg, false) {
		t.Fatalf("expected score below threshold to not satisfy gate")
	}
}

func TestGateSatisfied_NoAutoModeRequiresApproval(t *testing.T) {
	cfg := StageConfig{Pauses: true, AutoApproveThreshold: 4.0}
	tk := &task.Task{AutoMode: false, Outputs: task.StageOutputs{ReviewScore: 5.0}}
	if GateSatisfied(tk, cfg, false) {
		t.Fatalf("expected manual mode to require explicit approval regardless of score")
	}
}

func TestCanTransition_RejectsStageOutsideTier(t *testing.T) {
	tk := mkL2Task()
	if err := CanTransition(tk, task.StageDesignReview); err == nil {
		t.Fatalf("expected error for stage not in L2's sequence")
	} else if pipelineerr.Kind(err) != "gate_denied" {
		t.Errorf("Kind = %q, want gate_denied", pipelineerr.Kind(err))
	}
}

func TestCanTransition_CircuitBreakerTripped(t *testing.T) {
	tk := mkL2Task()
	tk.Counters.PlanReviewCount = circuitBreakerThreshold
	if err := CanTransition(tk, task.StagePlan); err == nil {
		t.Fatalf("expected circuit breaker error")
	} else if pipelineerr.Kind(err) != "circuit_breaker" {
		t.Errorf("Kind = %q, want circuit_breaker", pipelineerr.Kind(err))
	}
}

func TestCanTransition_AllowsWithinBudget(t *testing.T) {
	tk := mkL2Task()
	tk.Counters.PlanReviewCount = circuitBreakerThreshold - 1
	if err := CanTransition(tk, task.StagePlan); err != nil {
		t.Fatalf("expected transition to be allowed, got %v", err)
	}
}

func TestAdvanceTo_ClearsNextStageOutputAndSetsStatus(t *testing.T) {
	tk := mkL2Task()
	tk.Outputs.ImplementationNotes = "stale"
	AdvanceTo(tk, task.StageImplement)
	if tk.Status != task.StatusImplement {
		t.Errorf("Status = %q, want %q", tk.Status, task.StatusImplement)
	}
	if tk.Outputs.ImplementationNotes != "" {
		t.Errorf("expected next stage output cleared")
	}
}

func TestReject_AppendsHandoffAndIncrementsCounterAndClearsOutput(t *testing.T) {
	tk := mkL2Task()
	tk.Outputs.Plan = "some plan"
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	Reject(tk, task.StagePlan, "needs more detail", now)

	if len(tk.Handoffs) != 1 {
		t.Fatalf("expected 1 hand-off, got %d", len(tk.Handoffs))
	}
	if tk.Handoffs[0].Status != task.HandoffNeedsIntervention {
		t.Errorf("Status = %q", tk.Handoffs[0].Status)
	}
	if tk.Counters.PlanReviewCount != 1 {
		t.Errorf("PlanReviewCount = %d, want 1", tk.Counters.PlanReviewCount)
	}
	if tk.Outputs.Plan != "" {
		t.Errorf("expected plan output cleared")
	}
	if tk.Status != task.StatusPlan {
		t.Errorf("Status = %q, want restarted at plan", tk.Status)
	}
}

func TestReject_DoesNotMutatePriorHandoff(t *testing.T) {
	tk := mkL2Task()
	now := time.Now()
	Reject(tk, task.StagePlan, "first rejection", now)
	first := tk.Handoffs[0]
	Reject(tk, task.StagePlan, "second rejection", now)

	if len(tk.Handoffs) != 2 {
		t.Fatalf("expected 2 hand-offs, got %d", len(tk.Handoffs))
	}
	if tk.Handoffs[0] != first {
		t.Errorf("expected first hand-off untouched, got %+v", tk.Handoffs[0])
	}
	if tk.Counters.PlanReviewCount != 2 {
		t.Errorf("PlanReviewCount = %d, want 2", tk.Counters.PlanReviewCount)
	}
}

func TestRestartFromStage_ClearsAffectedOutputsCountersAndTransientFields(t *testing.T) {
	tk := &task.Task{
		ID:     1,
		Tier:   task.TierL3,
		Status: task.StatusVerify,
		Outputs: task.StageOutputs{
			Brainstorm:          "b",
			DesignReview:        "d",
			Plan:                "p",
			ImplementationNotes: "i",
			ReviewComments:      "r",
			TestResults:         "t",
		},
		Counters:       task.Counters{PlanReviewCount: 2, ImplReviewCount: 1},
		SessionID:      "sess-1",
		CurrentAgent:   "agent-1",
		PendingContent: "partial...",
		Handoffs:       []task.Handoff{{Stage: task.StagePlan}},
	}

	if err := RestartFromStage(tk, task.StagePlan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tk.Outputs.Plan != "" || tk.Outputs.ImplementationNotes != "" || tk.Outputs.ReviewComments != "" || tk.Outputs.TestResults != "" {
		t.Errorf("expected plan-and-after outputs cleared, got %+v", tk.Outputs)
	}
	if tk.Outputs.Brainstorm != "b" || tk.Outputs.DesignReview != "d" {
		t.Errorf("expected stages before T preserved, got %+v", tk.Outputs)
	}
	if tk.Counters.PlanReviewCount != 0 || tk.Counters.ImplReviewCount != 0 {
		t.Errorf("expected counters for affected stages reset, got %+v", tk.Counters)
	}
	if tk.SessionID != "" || tk.CurrentAgent != "" || tk.PendingContent != "" {
		t.Errorf("expected transient fields cleared")
	}
	if len(tk.Handoffs) != 0 {
		t.Errorf("expected hand-offs cleared on restart")
	}
	if tk.Status != task.StatusPlan {
		t.Errorf("Status = %q, want restarted at plan", tk.Status)
	}
}

func TestRestartFromStage_UnknownStageErrors(t *testing.T) {
	tk := mkL2Task()
	if err := RestartFromStage(tk, task.StageCodeReview); err == nil {
		t.Fatalf("expected error restarting from a stage outside the tier")
	}
}

func TestNextInSequence_LastStageReportsAtEnd(t *testing.T) {
	tk := &task.Task{Tier: task.TierL1}
	next, atEnd := nextInSequence(tk, task.StageImplement)
	if !atEnd {
		t.Fatalf("expected atEnd=true after last pre-done stage")
	}
	if next != task.StageDone {
		t.Errorf("next = %q, want done", next)
	}
}

func TestNextInSequence_MidSequence(t *testing.T) {
	tk := &task.Task{Tier: task.TierL2}
	next, atEnd := nextInSequence(tk, task.StageBrainstorm)
	if atEnd {
		t.Fatalf("expected atEnd=false")
	}
	if next != task.StagePlan {
		t.Errorf("next = %q, want plan", next)
	}
}
