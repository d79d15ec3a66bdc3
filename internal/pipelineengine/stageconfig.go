// Package pipelineengine implements the per-task Pipeline Engine
// (spec §4.E): the state machine that walks a task through its
// tier's stage sequence, gates transitions on review/circuit-breaker
// outcomes, and drives the Model Session Runner while keeping the
// persisted task record durable against abnormal termination. It
// generalizes the teacher's internal/changes adaptive state machine
// (CanAdvance/Advance/CompleteChange, see
// _examples/HendryAvila-Hoofy/internal/changes/state.go) from a
// fixed linear advance to a gated, circuit-breaker-aware, restartable
// one, and folds in internal/pipeline's per-stage design-time
// configuration idiom.
package pipelineengine

import "github.com/hoofy-labs/pipeline-engine/internal/task"

// StageConfig is a stage's design-time configuration (spec §4.E.2).
type StageConfig struct {
	Skill                string
	DefaultModel         string
	MaxTurns             int
	Timeout              int // seconds
	Pauses               bool
	AutoApproveThreshold float64 // 0 disables auto-approve
	TemplateFile         string

	// EstimatedContextTokens is a rough per-stage token budget the
	// Scheduler's context-handoff gate (spec §4.F "Context handoff
	// gate") compares against a session's remaining context window
	// before admitting the next stage.
	EstimatedContextTokens int
}

// defaultStageConfigs is the compiled-in default; settingsconfig
// layers global/project overrides on top of this (spec §4.A
// "Settings").
var defaultStageConfigs = map[task.Stage]StageConfig{
	task.StageBrainstorm: {
		Skill: "brainstorm", DefaultModel: "default", MaxTurns: 20, Timeout: 600,
		Pauses: true, AutoApproveThreshold: 0, TemplateFile: "brainstorm.tmpl",
		EstimatedContextTokens: 20000,
	},
	task.StageDesignReview: {
		Skill: "design-review", DefaultModel: "default", MaxTurns: 15, Timeout: 600,
		Pauses: true, AutoApproveThreshold: 4.0, TemplateFile: "design_review.tmpl",
		EstimatedContextTokens: 15000,
	},
	task.StagePlan: {
		Skill: "plan", DefaultModel: "default", MaxTurns: 20, Timeout: 600,
		Pauses: true, AutoApproveThreshold: 4.0, TemplateFile: "plan.tmpl",
		EstimatedContextTokens: 25000,
	},
	task.StageImplement: {
		Skill: "implement", DefaultModel: "default", MaxTurns: 60, Timeout: 2400,
		Pauses: false, AutoApproveThreshold: 0, TemplateFile: "implement.tmpl",
		EstimatedContextTokens: 80000,
	},
	task.StageCodeReview: {
		Skill: "code-review", DefaultModel: "default", MaxTurns: 15, Timeout: 600,
		Pauses: true, AutoApproveThreshold: 4.0, TemplateFile: "code_review.tmpl",
		EstimatedContextTokens: 20000,
	},
	task.StageVerify: {
		Skill: "verify", DefaultModel: "default", MaxTurns: 30, Timeout: 1200,
		Pauses: true, AutoApproveThreshold: 4.5, TemplateFile: "verify.tmpl",
		EstimatedContextTokens: 30000,
	},
}

// StageConfigFor returns the compiled-in default config for a stage,
// plus whether one is registered.
func StageConfigFor(s task.Stage) (StageConfig, bool) {
	cfg, ok := defaultStageConfigs[s]
	return cfg, ok
}

// mergeStageConfig layers override onto base, a zero field at a time,
// mirroring settingsconfig's own merge semantics so an Engine override
// built from settingsconfig.StageSettings behaves the same whether the
// knob was applied in the config layer or here.
func mergeStageConfig(base, override StageConfig) StageConfig {
	if override.DefaultModel != "" {
		base.DefaultModel = override.DefaultModel
	}
	if override.MaxTurns != 0 {
		base.MaxTurns = override.MaxTurns
	}
	if override.Timeout != 0 {
		base.Timeout = override.Timeout
	}
	if override.AutoApproveThreshold != 0 {
		base.AutoApproveThreshold = override.AutoApproveThreshold
	}
	return base
}

// circuitBreakerThreshold is the rejection count at which a stage's
// re-entry is blocked (spec §4.E.3: "plan_review_count ≥ 3 blocks
// plan; impl_review_count ≥ 3 blocks implement").
const circuitBreakerThreshold = 3

// counterForStage maps a stage to the rejection counter that gates
// re-entering it.
func counterForStage(s task.Stage) func(c task.Counters) int {
	switch s {
	case task.StagePlan:
		return func(c task.Counters) int { return c.PlanReviewCount }
	case task.StageImplement:
		return func(c task.Counters) int { return c.ImplReviewCount }
	default:
		return nil
	}
}
