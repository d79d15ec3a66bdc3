package pipelineengine

import (
	"context"
	"fmt"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/assembler"
	"github.com/hoofy-labs/pipeline-engine/internal/pipelineerr"
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"go.uber.org/zap"
)

const (
	// persistDebounce is how often the streaming buffer is flushed to
	// the store while a session is active (spec §4.E.4).
	persistDebounce = 2 * time.Second
	// stallWindow is how long the engine waits for a text/tool_use
	// event before raising a stalled condition (spec §4.E.6).
	stallWindow = 60 * time.Second
)

// Store is the subset of the Persistence Store the engine depends on.
// It is an interface so the engine never imports a concrete driver.
type Store interface {
	SaveTask(ctx context.Context, t *task.Task) error
}

// Engine drives one task through its tier's stage sequence (spec
// §4.E). It is the generalization of the teacher's
// changes.Advance/CanAdvance pair into a gated, circuit-breaker-aware,
// Runner-driven state machine.
type Engine struct {
	store     Store
	renderer  *assembler.Renderer
	runner    *runner.Runner
	logger    *zap.Logger
	now       func() time.Time
	overrides map[task.Stage]StageConfig
}

// NewEngine wires a Store, Renderer and Runner into an Engine.
func NewEngine(store Store, renderer *assembler.Renderer, r *runner.Runner, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, renderer: renderer, runner: r, logger: logger, now: time.Now}
}

// SetStageOverrides installs per-stage settings (spec §4.A "Settings")
// that take precedence over the compiled-in defaults from
// StageConfigFor — the layering internal/settingsconfig resolves from
// global/project scope. A zero-valued field in an override leaves the
// compiled-in default untouched, matching settingsconfig's own merge
// semantics.
func (e *Engine) SetStageOverrides(overrides map[task.Stage]StageConfig) {
	e.overrides = overrides
}

// stageConfig resolves a stage's effective configuration: compiled-in
// default, with any installed override layered on top.
func (e *Engine) stageConfig(stage task.Stage) (StageConfig, bool) {
	cfg, ok := StageConfigFor(stage)
	if !ok {
		return cfg, false
	}
	if o, ok := e.overrides[stage]; ok {
		cfg = mergeStageConfig(cfg, o)
	}
	return cfg, true
}

// RunStage drives tk through its tier's stage sequence starting from
// its current position (spec §4.E.3); a backlog task first enters the
// first stage of its tier. When resuming a task parked in
// awaiting_review, approved controls whether the pending gate is now
// satisfied; for a fresh or rejected stage the session is run first
// and the gate is then evaluated against its freshly-produced output.
// While gates keep passing, the engine advances and re-enters the
// loop automatically ("recurse at step 1 for the new current stage"),
// stopping at done, awaiting_review, blocked, or a session
// cancellation/error.
func (e *Engine) RunStage(ctx context.Context, tk *task.Task, obs Observer, approved bool) error {
	if tk.Status == task.StatusBacklog {
		seq := tk.Stages()
		if len(seq) == 0 || seq[0] == task.StageDone {
			return fmt.Errorf("%w: task %d has no stage sequence for tier %q", pipelineerr.ErrMalformedData, tk.ID, tk.Tier)
		}
		AdvanceTo(tk, seq[0])
	}
	for {
		resuming := tk.Status == task.StatusAwaitingReview
		var stage task.Stage
		if resuming {
			stage = task.Stage(tk.PausedFromStatus)
		} else {
			stage = tk.CurrentStage()
		}
		if stage == "" {
			return fmt.Errorf("%w: task %d has no active stage (status %q)", pipelineerr.ErrMalformedData, tk.ID, tk.Status)
		}

		if !resuming {
			obs.emitStatus(StatusTelemetry{TaskID: tk.ID, Type: StatusStart, Detail: string(stage)})
			if err := e.runStageSession(ctx, tk, stage, obs); err != nil {
				if pipelineerr.Kind(err) == "cancelled" {
					obs.emitStatus(StatusTelemetry{TaskID: tk.ID, Type: StatusPause, Detail: "cancelled"})
					obs.emitSnapshot(tk)
					_ = e.persist(ctx, tk)
					return err
				}
				obs.emitStatus(StatusTelemetry{TaskID: tk.ID, Type: StatusErrorEvent, Detail: err.Error()})
				obs.emitSnapshot(tk)
				return e.persist(ctx, tk)
			}
			obs.emitSnapshot(tk)
			if err := e.persist(ctx, tk); err != nil {
				return err
			}
		}

		cfg, ok := e.stageConfig(stage)
		if !ok {
			return fmt.Errorf("%w: no stage configuration for %q", pipelineerr.ErrMalformedData, stage)
		}

		if !GateSatisfied(tk, cfg, approved) {
			EnterAwaitingReview(tk)
			obs.emitStatus(StatusTelemetry{TaskID: tk.ID, Type: StatusAwaitingReview, Detail: string(stage)})
			obs.emitSnapshot(tk)
			return e.persist(ctx, tk)
		}

		nextStage, atEnd := nextInSequence(tk, stage)
		if atEnd {
			Finalize(tk, e.now())
			obs.emitStatus(StatusTelemetry{TaskID: tk.ID, Type: StatusComplete, Detail: string(stage)})
			obs.emitSnapshot(tk)
			return e.persist(ctx, tk)
		}

		if err := CanTransition(tk, nextStage); err != nil {
			Block(tk, err.Error())
			obs.emitStatus(StatusTelemetry{TaskID: tk.ID, Type: StatusCircuitBreaker, Detail: err.Error()})
			obs.emitSnapshot(tk)
			return e.persist(ctx, tk)
		}

		AdvanceTo(tk, nextStage)
		approved = false // a fresh gate must be satisfied for each newly-entered stage
	}
}

// nextInSequence returns the stage after current in tk's tier
// sequence, or (task.StageDone, true) when current is the last
// pre-done stage.
func nextInSequence(tk *task.Task, current task.Stage) (task.Stage, bool) {
	seq := tk.Stages()
	idx := stageIndex(tk, current)
	if idx < 0 || idx+1 >= len(seq) {
		return task.StageDone, true
	}
	next := seq[idx+1]
	if next == task.StageDone {
		return task.StageDone, true
	}
	return next, false
}

// runStageSession assembles the stage's prompt, drives the Runner,
// and on completion parses a hand-off from the tail of the output
// (spec §4.D, §4.E.3 step 4, §4.E.4).
func (e *Engine) runStageSession(ctx context.Context, tk *task.Task, stage task.Stage, obs Observer) error {
	cfg, _ := e.stageConfig(stage)

	prompt, err := e.renderer.RenderForTask(tk, e.now())
	if err != nil {
		return fmt.Errorf("%w: rendering prompt for stage %q: %v", pipelineerr.ErrMalformedData, stage, err)
	}

	debounce := newDebouncer(persistDebounce, func() { _ = e.persist(ctx, tk) })
	stall := newStallDetector(stallWindow, func() { obs.emitStalled(StalledTelemetry{TaskID: tk.ID, Stage: stage}) })
	defer debounce.stop()
	defer stall.stop()

	req := runner.Request{
		Prompt:       prompt,
		Model:        cfg.DefaultModel,
		MaxTurns:     cfg.MaxTurns,
		Timeout:      time.Duration(cfg.Timeout) * time.Second,
		ResumeHandle: tk.SessionID,
		OwningTaskID: tk.ID,
		OnStream: func(_ context.Context, ev runner.StreamEvent) {
			e.handleStreamEvent(tk, stage, ev, obs, stall)
		},
	}

	res := e.runner.Run(ctx, req)
	debounce.stop()
	stall.stop()

	if res.Cancelled {
		// Partial-content durability: anything accumulated survives in
		// pendingContent for the next open (spec §4.E.4).
		return pipelineerr.ErrCancelled
	}
	if res.Err != nil {
		return fmt.Errorf("%w: %v", pipelineerr.ErrSessionFailed, res.Err)
	}

	tk.SessionID = res.ResumeHandle
	h, found := assembler.ParseHandoffBlock(res.FinalText)
	if !found {
		h = assembler.SynthesizeHandoff(res.FinalText)
	}
	h.TaskID = tk.ID
	h.Stage = stage
	h.Timestamp = e.now()
	if h.Status == "" {
		h.Status = task.HandoffCompleted
	}
	tk.Handoffs = append(tk.Handoffs, *h)
	tk.PendingContent = ""
	applyStageOutput(tk, stage, res.FinalText)
	tk.AppendActivity("stage-complete", fmt.Sprintf("%s completed", stage), e.now())
	return nil
}

// applyStageOutput commits the stage's produced text into the
// matching StageOutputs field.
func applyStageOutput(tk *task.Task, stage task.Stage, text string) {
	switch stage {
	case task.StageBrainstorm:
		tk.Outputs.Brainstorm = text
	case task.StageDesignReview:
		tk.Outputs.DesignReview = text
	case task.StagePlan:
		tk.Outputs.Plan = text
	case task.StageImplement:
		tk.Outputs.ImplementationNotes = text
	case task.StageCodeReview:
		tk.Outputs.ReviewComments = text
	case task.StageVerify:
		tk.Outputs.TestResults = text
	}
}

func (e *Engine) persist(ctx context.Context, tk *task.Task) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveTask(ctx, tk); err != nil {
		e.logger.Error("persist task failed", zap.Int64("task_id", tk.ID), zap.Error(err))
		return err
	}
	return nil
}
