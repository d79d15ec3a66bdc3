// Package app wires every component into a runnable MCP server.
//
// Grounded on the teacher's internal/server.New: the composition root
// (DIP) that creates concrete implementations and injects them into
// the tools that depend on abstractions. No business logic lives
// here — only wiring.
package app

import (
	"fmt"

	"github.com/hoofy-labs/pipeline-engine/internal/assembler"
	"github.com/hoofy-labs/pipeline-engine/internal/mcpsurface"
	"github.com/hoofy-labs/pipeline-engine/internal/pipelineengine"
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/scheduler"
	"github.com/hoofy-labs/pipeline-engine/internal/settingsconfig"
	"github.com/hoofy-labs/pipeline-engine/internal/store"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config controls the composition root's dependencies. A zero-value
// Config is valid: ProjectRoot falls back to the current directory
// ("."), and Backend falls back to unconfiguredBackend.
type Config struct {
	ProjectRoot string
	Backend     runner.Backend
	Logger      *zap.Logger
}

// New constructs the MCP server: the Persistence Store, the Prompt
// Assembler, the Runner (over Backend, or the unconfigured stand-in if
// none was supplied), the Pipeline Engine, the Scheduler, the
// Approval registry, and the mcpsurface.Surface that exposes them all
// as tools. The returned cleanup closes the store's database
// connection and must be called on shutdown (typically via defer).
func New(cfg Config) (*mcpserver.MCPServer, func(), error) {
	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, noop, fmt.Errorf("app: creating logger: %w", err)
		}
	}

	projectRoot := cfg.ProjectRoot
	if projectRoot == "" {
		projectRoot = "."
	}

	st, err := store.New(projectRoot, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("app: opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}

	renderer, err := assembler.NewRenderer()
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("app: creating renderer: %w", err)
	}

	backend := cfg.Backend
	if backend == nil {
		backend = unconfiguredBackend{}
	}
	rn := runner.NewRunner(backend)

	engine := pipelineengine.NewEngine(st, renderer, rn, logger)
	engine.SetStageOverrides(resolveStageOverrides(projectRoot, logger))

	sched := scheduler.New(st, engine, logger, scheduler.Observer{}, scheduler.Config{})

	approvals := runner.NewApprovalRegistry()

	s := mcpserver.NewMCPServer(
		"pipeline-engine",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	surface := &mcpsurface.Surface{
		Store:     st,
		Engine:    engine,
		Scheduler: sched,
		Approvals: approvals,
		Logger:    logger,
	}
	surface.Register(s)

	return s, cleanup, nil
}

// resolveStageOverrides loads the layered global/project settings
// (spec §4.A "Settings") for every stage in the largest tier sequence
// and converts each into a pipelineengine.StageConfig override. A
// settings load failure is logged and treated as "no overrides" —
// the engine falls back to its compiled-in defaults.
func resolveStageOverrides(projectRoot string, logger *zap.Logger) map[task.Stage]pipelineengine.StageConfig {
	settingsStore := settingsconfig.NewStore(settingsconfig.DefaultGlobalPath())
	overrides := make(map[task.Stage]pipelineengine.StageConfig)
	for _, stage := range task.Stages(task.TierL3) {
		resolved, err := settingsStore.ResolveStageConfig(projectRoot, stage)
		if err != nil {
			logger.Warn("resolving stage settings, using compiled-in default", zap.String("stage", string(stage)), zap.Error(err))
			continue
		}
		overrides[stage] = pipelineengine.StageConfig{
			DefaultModel:         resolved.Model,
			MaxTurns:             resolved.MaxTurns,
			Timeout:              resolved.TimeoutSeconds,
			AutoApproveThreshold: resolved.AutoApproveThreshold,
		}
	}
	return overrides
}

func noop() {}
