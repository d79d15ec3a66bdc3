package scheduler

import (
	"context"
	"fmt"

	"github.com/hoofy-labs/pipeline-engine/internal/pipelineengine"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// HandleContextTelemetry is wired as pipelineengine.Observer.OnContext
// (spec §4.F "Context handoff gate"). Whenever a session reports its
// context-window usage, it checks whether the task's next stage's
// estimated need would exceed the remaining window; if so the task is
// suspended (status blocked; its session is cleared only when the
// handoff is approved via ApproveContextHandoff) and a proposal is
// surfaced via Observer rather than advancing straight into a stage
// that would overrun mid-run.
func (s *Scheduler) HandleContextTelemetry(ctx context.Context, ev pipelineengine.ContextTelemetry) error {
	tk, err := s.loadTask(ctx, ev.TaskID)
	if err != nil {
		return err
	}
	if tk == nil {
		return nil
	}

	remaining := ev.MaxTokens - ev.UsedTokens
	next := nextStage(tk, ev.Stage)
	if next == "" {
		return nil
	}
	cfg, ok := pipelineengine.StageConfigFor(next)
	if !ok || cfg.EstimatedContextTokens <= remaining {
		return nil
	}

	tk.PausedFromStatus = tk.Status
	tk.Status = task.StatusBlocked
	tk.PauseReason = "context-handoff"
	if err := s.store.SaveTask(ctx, tk); err != nil {
		return fmt.Errorf("scheduler: saving context-handoff-suspended task %d: %w", tk.ID, err)
	}

	s.obs.emitContextHandoff(ContextHandoffEvent{
		TaskID:         tk.ID,
		UsedTokens:     ev.UsedTokens,
		MaxTokens:      ev.MaxTokens,
		NextStageNeeds: cfg.EstimatedContextTokens,
	})
	return nil
}

// ApproveContextHandoff resumes a task suspended by
// HandleContextTelemetry, clearing its session so the next stage
// starts a fresh one (spec §4.F "approving a handoff clears the
// session and resumes").
func (s *Scheduler) ApproveContextHandoff(ctx context.Context, taskID int64) error {
	tk, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if tk == nil {
		return fmt.Errorf("scheduler: task %d not found", taskID)
	}
	if tk.PauseReason != "context-handoff" {
		return fmt.Errorf("scheduler: task %d has no pending context handoff", taskID)
	}

	tk.Status = tk.PausedFromStatus
	tk.PausedFromStatus = ""
	tk.PauseReason = ""
	tk.SessionID = ""
	return s.store.SaveTask(ctx, tk)
}

func (s *Scheduler) loadTask(ctx context.Context, taskID int64) (*task.Task, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: listing tasks: %w", err)
	}
	for _, tk := range tasks {
		if tk.ID == taskID {
			return tk, nil
		}
	}
	return nil, nil
}

// nextStage returns the stage after cur within tk's tier sequence, or
// "" if cur is the last stage.
func nextStage(tk *task.Task, cur task.Stage) task.Stage {
	seq := tk.Stages()
	for i, st := range seq {
		if st == cur && i+1 < len(seq) {
			return seq[i+1]
		}
	}
	return ""
}
