package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// UsageSnapshot reports the account's current model-usage utilisation,
// as surfaced by the runner's usage-limit telemetry (spec §4.F
// "Capacity throttling" inputs: five-hour and seven-day rolling
// utilisation ratios).
type UsageSnapshot struct {
	FiveHourUtilisation float64
	SevenDayUtilisation float64
}

// utilisation picks the binding ratio: whichever window is closer to
// exhausting capacity governs the throttle decision.
func (u UsageSnapshot) utilisation() float64 {
	if u.SevenDayUtilisation > u.FiveHourUtilisation {
		return u.SevenDayUtilisation
	}
	return u.FiveHourUtilisation
}

// ApplyUsage pauses every running task once utilisation crosses
// Config.Ceiling, and resumes them once it falls back under
// Config.Floor (spec §4.F "Capacity throttling": hysteresis band
// avoids flapping pause/resume near the ceiling). Resume restores
// priority order: higher-priority tasks are un-paused first so they
// re-enter Dispatch's ready set ahead of lower-priority siblings.
func (s *Scheduler) ApplyUsage(ctx context.Context, usage UsageSnapshot) error {
	ratio := usage.utilisation()

	s.mu.Lock()
	wasPaused := s.pausedByUsage
	switch {
	case !wasPaused && ratio >= s.ceiling:
		s.pausedByUsage = true
	case wasPaused && ratio <= s.floor:
		s.pausedByUsage = false
	}
	nowPaused := s.pausedByUsage
	s.mu.Unlock()

	switch {
	case nowPaused && !wasPaused:
		return s.pauseRunning(ctx, ratio)
	case !nowPaused && wasPaused:
		return s.resumePaused(ctx)
	default:
		return nil
	}
}

func (s *Scheduler) pauseRunning(ctx context.Context, ratio float64) error {
	tasks, err := s.store.ListTasks(ctx, runningStatuses()...)
	if err != nil {
		return fmt.Errorf("scheduler: listing running tasks for usage pause: %w", err)
	}

	var paused []int64
	for _, tk := range tasks {
		tk.PausedFromStatus = tk.Status
		tk.Status = task.StatusPaused
		tk.PauseReason = "usage-paused"
		if err := s.store.SaveTask(ctx, tk); err != nil {
			return fmt.Errorf("scheduler: saving usage-paused task %d: %w", tk.ID, err)
		}
		paused = append(paused, tk.ID)
	}

	s.obs.emitUsagePaused(UsagePausedEvent{PausedTaskIDs: paused, Utilisation: ratio})
	return nil
}

func (s *Scheduler) resumePaused(ctx context.Context) error {
	tasks, err := s.store.ListTasks(ctx, task.StatusPaused)
	if err != nil {
		return fmt.Errorf("scheduler: listing paused tasks for resume: %w", err)
	}

	var usagePaused []*task.Task
	for _, tk := range tasks {
		if tk.PauseReason == "usage-paused" {
			usagePaused = append(usagePaused, tk)
		}
	}
	sort.Slice(usagePaused, func(i, j int) bool { return usagePaused[i].Priority > usagePaused[j].Priority })

	var resumed []int64
	for _, tk := range usagePaused {
		tk.Status = tk.PausedFromStatus
		tk.PausedFromStatus = ""
		tk.PauseReason = ""
		if err := s.store.SaveTask(ctx, tk); err != nil {
			return fmt.Errorf("scheduler: saving resumed task %d: %w", tk.ID, err)
		}
		resumed = append(resumed, tk.ID)
	}

	s.obs.emitResumed(ResumedEvent{ResumedTaskIDs: resumed})
	return nil
}

// runningStatuses lists every status that represents an in-flight
// pipeline stage, i.e. everything capacity throttling can interrupt.
func runningStatuses() []task.Status {
	return []task.Status{
		task.StatusBrainstorm,
		task.StatusDesignReview,
		task.StatusPlan,
		task.StatusImplement,
		task.StatusCodeReview,
		task.StatusVerify,
	}
}
