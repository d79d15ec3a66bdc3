package pipelineengine

import (
	"fmt"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/pipelineerr"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// stageIndex returns the ordinal position of stage s within the
// task's tier sequence, or -1 if not found. Direct generalization of
// changes.CurrentStageIndex to an arbitrary stage rather than only
// the task's current one.
func stageIndex(t *task.Task, s task.Stage) int {
	for i, st := range t.Stages() {
		if st == s {
			return i
		}
	}
	return -1
}

// affectedStages returns from (and every stage after it) within the
// task's tier sequence, per spec §4.E.3 "restart from stage T:
// compute the affected set = {T and every stage after T}".
func affectedStages(tk *task.Task, from task.Stage) []task.Stage {
	idx := stageIndex(tk, from)
	if idx < 0 {
		return nil
	}
	seq := tk.Stages()
	return seq[idx:]
}

// GateSatisfied reports whether stage s's pause gate is satisfied for
// the given task, either because the stage doesn't pause, because a
// human explicitly approved it (approved=true), or because
// auto-mode is on and the review score clears the stage's
// auto-approve threshold (spec §4.E.2, §4.E.3 step 2).
func GateSatisfied(tk *task.Task, cfg StageConfig, approved bool) bool {
	if !cfg.Pauses {
		return true
	}
	if approved {
		return true
	}
	if tk.AutoMode && cfg.AutoApproveThreshold > 0 && tk.Outputs.ReviewScore >= cfg.AutoApproveThreshold {
		return true
	}
	return false
}

// CanTransition reports whether task tk, currently at its stage, may
// move to nextStage: nextStage must be the tier's next stage and must
// not be blocked by a tripped circuit breaker (spec §4.E.3 step 3).
func CanTransition(tk *task.Task, nextStage task.Stage) error {
	idx := stageIndex(tk, nextStage)
	if idx < 0 {
		return fmt.Errorf("%w: stage %q is not in tier %q's sequence", pipelineerr.ErrGateDenied, nextStage, tk.Tier)
	}

	if get := counterForStage(nextStage); get != nil {
		if get(tk.Counters) >= circuitBreakerThreshold {
			return fmt.Errorf("%w: stage %q rejected %d times", pipelineerr.ErrCircuitBreaker, nextStage, get(tk.Counters))
		}
	}
	return nil
}

// Finalize marks a task done after its tier's terminal stage
// completes (spec §4.E.3 step 1).
func Finalize(tk *task.Task, now time.Time) {
	tk.Status = task.StatusDone
	tk.CompletedAt = &now
}

// EnterAwaitingReview marks tk awaiting human review of its current
// stage's output (spec §4.E.3 step 2).
func EnterAwaitingReview(tk *task.Task) {
	tk.PausedFromStatus = tk.Status
	tk.Status = task.StatusAwaitingReview
}

// Block marks tk blocked with reason, e.g. a tripped circuit breaker
// or an unresolvable gate (spec §4.E.3 step 3 "On denial, mark the
// task blocked with the breaker reason").
func Block(tk *task.Task, reason string) {
	tk.Status = task.StatusBlocked
	tk.PauseReason = reason
}

// AdvanceTo transitions tk onto nextStage: sets status, clears the
// next stage's persisted output (the stage is about to be re-run from
// scratch), and leaves session/runner concerns to the caller (spec
// §4.E.3 step 4).
func AdvanceTo(tk *task.Task, nextStage task.Stage) {
	tk.Outputs.Clear(nextStage)
	tk.Status = task.StatusForStage(nextStage)
	tk.PauseReason = ""
	tk.PausedFromStatus = ""
}

// Reject appends a needs_intervention hand-off, increments the
// current stage's rejection counter, clears the stage's output, and
// restarts the same stage (spec §4.E.3 "Rejection ... restarts the
// same stage (not the next one) after clearing its output").
func Reject(tk *task.Task, stage task.Stage, reason string, now time.Time) {
	tk.Handoffs = append(tk.Handoffs, task.Handoff{
		TaskID:     tk.ID,
		Stage:      stage,
		Timestamp:  now,
		Status:     task.HandoffNeedsIntervention,
		StatusNote: reason,
	})
	tk.Counters.Increment(stage)
	tk.Outputs.Clear(stage)
	tk.Status = task.StatusForStage(stage)
}

// RestartFromStage clears the persisted output and rejection counters
// of T and every stage after it, and clears the task's transient
// session fields. Dependency edges and all non-stage metadata are
// left untouched (spec §4.E.3 "Restart from stage T").
func RestartFromStage(tk *task.Task, from task.Stage) error {
	affected := affectedStages(tk, from)
	if len(affected) == 0 {
		return fmt.Errorf("%w: stage %q is not in tier %q's sequence", pipelineerr.ErrMalformedData, from, tk.Tier)
	}

	for _, s := range affected {
		tk.Outputs.Clear(s)
		tk.Counters.Reset(s)
	}

	tk.SessionID = ""
	tk.CurrentAgent = ""
	tk.PendingContent = ""
	tk.Todos = make(map[task.Stage][]task.TodoItem)
	tk.Handoffs = nil

	tk.Status = task.StatusForStage(from)
	tk.PauseReason = ""
	tk.PausedFromStatus = ""
	return nil
}
