// Package scheduler implements the Scheduler & Capacity Arbiter (spec
// §4.F): the single continuously-running arbiter that decides which
// backlog tasks may start, re-evaluates the ready set whenever a task
// finishes, throttles admission under model-usage pressure, gates
// stage transitions that would overrun a session's remaining context
// window, and bounds how many sibling tasks within one group run at
// once.
//
// Grounded on the `other_examples` DAG-scheduler/executor admission
// loop shape and on the teacher's changes.FileStore.LoadActive
// "recompute the whole set on every change" idiom (internal/changes),
// generalized here from a single linear change queue into a
// dependency-graph-aware ready set (internal/depgraph) feeding
// per-task pipelines (internal/pipelineengine).
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hoofy-labs/pipeline-engine/internal/depgraph"
	"github.com/hoofy-labs/pipeline-engine/internal/pipelineengine"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"go.uber.org/zap"
)

// Store is the subset of internal/store.Store the Scheduler depends
// on: task listing/saving, plus group lookups for orchestration.
type Store interface {
	ListTasks(ctx context.Context, statuses ...task.Status) ([]*task.Task, error)
	SaveTask(ctx context.Context, t *task.Task) error
	ListGroups(ctx context.Context) ([]*task.TaskGroup, error)
}

// EngineRunner is the subset of pipelineengine.Engine the Scheduler
// dispatches ready tasks onto.
type EngineRunner interface {
	RunStage(ctx context.Context, tk *task.Task, obs pipelineengine.Observer, approved bool) error
}

// Scheduler is the Capacity Arbiter. One instance serves a whole
// project; it holds no per-task state beyond what's needed for the
// current tick (spec §5 "the core runs as a single cooperative event
// loop").
type Scheduler struct {
	store  Store
	engine EngineRunner
	logger *zap.Logger
	obs    Observer

	groups *groupLimiter

	mu             sync.Mutex
	pausedByUsage  bool // true while capacity throttling has the fleet paused
	ceiling, floor float64
}

// Config configures capacity-throttle hysteresis thresholds. Both are
// compared against the larger of the five-hour and seven-day
// utilisation ratios (0-1): Ceiling is the level at which the
// scheduler pauses every running task; Floor is the lower threshold
// utilisation must fall back under before resuming them (spec §4.F
// "hysteresis").
type Config struct {
	Ceiling float64
	Floor   float64
}

// defaultConfig matches no pack-observed constant (this concern is
// new to the domain); 0.9/0.7 gives a wide hysteresis band so the
// scheduler doesn't flap pause/resume near the ceiling.
var defaultConfig = Config{Ceiling: 0.9, Floor: 0.7}

// New constructs a Scheduler. A zero-value cfg falls back to
// defaultConfig.
func New(store Store, engine EngineRunner, logger *zap.Logger, obs Observer, cfg Config) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Ceiling == 0 && cfg.Floor == 0 {
		cfg = defaultConfig
	}
	return &Scheduler{
		store:   store,
		engine:  engine,
		logger:  logger,
		obs:     obs,
		groups:  newGroupLimiter(),
		ceiling: cfg.Ceiling,
		floor:   cfg.Floor,
	}
}

// loadGraph pulls every task and builds the dependency graph fresh,
// matching changes.FileStore's scan-and-filter-the-whole-set idiom
// rather than maintaining an incremental index.
func (s *Scheduler) loadGraph(ctx context.Context) ([]*task.Task, *depgraph.Graph, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: listing tasks: %w", err)
	}
	return tasks, depgraph.BuildGraph(tasks), nil
}

// CanStart reports whether taskID may leave backlog: every
// prerequisite must be done (spec §4.F "Admission"). On refusal it
// returns the blocking prerequisite ids.
func (s *Scheduler) CanStart(ctx context.Context, taskID int64) (bool, []int64, error) {
	_, g, err := s.loadGraph(ctx)
	if err != nil {
		return false, nil, err
	}
	blockers := depgraph.IsTaskBlocked(g, taskID)
	return len(blockers) == 0, blockers, nil
}

// Reevaluate recomputes the ready set after a task reaches done and
// emits task-unblocked for every newly-ready dependent (spec §4.F
// "Auto-unblock"). The caller passes the id of the task that just
// completed; only its direct dependents are checked, since nothing
// else in the graph could have changed readiness.
func (s *Scheduler) Reevaluate(ctx context.Context, completedTaskID int64) ([]int64, error) {
	_, g, err := s.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	dependents := directDependents(g, completedTaskID)
	var unblocked []int64
	for _, id := range dependents {
		if g.Status[id] != task.StatusBacklog {
			continue
		}
		if len(depgraph.IsTaskBlocked(g, id)) == 0 {
			unblocked = append(unblocked, id)
			s.obs.emitTaskUnblocked(TaskUnblockedEvent{TaskID: id})
		}
	}
	return unblocked, nil
}

func directDependents(g *depgraph.Graph, parentID int64) []int64 {
	var out []int64
	for id, prereqs := range g.Prereqs {
		for _, p := range prereqs {
			if p == parentID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch admits and runs every currently-ready task, bounding
// per-group concurrency via the group limiter and running the
// independent pipelines concurrently. It returns once every dispatched
// task's RunStage call has returned (spec §5 "per-task pipelines
// execute independently and may overlap in time").
func (s *Scheduler) Dispatch(ctx context.Context) error {
	s.mu.Lock()
	paused := s.pausedByUsage
	s.mu.Unlock()
	if paused {
		return nil
	}

	tasks, g, err := s.loadGraph(ctx)
	if err != nil {
		return err
	}

	byID := make(map[int64]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: listing groups: %w", err)
	}
	groupByID := make(map[string]*task.TaskGroup, len(groups))
	for _, grp := range groups {
		groupByID[grp.ID] = grp
		s.groups.configure(grp.ID, grp.MaxConcurrency)
	}

	ready := depgraph.GetReadyTaskIds(g)
	return runEach(ctx, ready, func(ctx context.Context, id int64) error {
		tk := byID[id]
		if tk == nil {
			return nil
		}
		if grp, ok := groupByID[tk.GroupID]; ok && grp.Status == task.GroupPaused {
			return nil
		}

		release, err := s.groups.acquire(ctx, tk.GroupID)
		if err != nil {
			return err
		}
		defer release()

		// RunStage persists tk itself on every return path (engine.go's
		// persist calls); the Scheduler only needs to observe the error,
		// not re-save.
		if err := s.engine.RunStage(ctx, tk, pipelineengine.Observer{}, false); err != nil {
			s.logger.Warn("dispatch: stage run failed", zap.Int64("task_id", tk.ID), zap.Error(err))
		}
		return nil
	})
}
