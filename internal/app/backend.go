package app

import (
	"context"
	"errors"

	"github.com/hoofy-labs/pipeline-engine/internal/runner"
)

// unconfiguredBackend is the runner.Backend used when no vendor model
// client has been wired in. The model client itself is an external
// collaborator (spec §2 Non-goals: "the underlying model client
// itself"); this stand-in lets the rest of the pipeline — persistence,
// dependency graph, scheduler, MCP surface — run and be exercised
// without vendoring a real SDK.
type unconfiguredBackend struct{}

func (unconfiguredBackend) Invoke(ctx context.Context, req runner.Request) (runner.Result, error) {
	return runner.Result{}, errors.New("app: no model backend configured; pass one via app.Config.Backend")
}
