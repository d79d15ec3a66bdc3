// Package mcpsurface exposes the core's command surface (spec §6
// "Presentation boundary") as MCP tools, adapting the teacher's
// internal/tools registration idiom (one Definition()/Handle() pair
// per command, registered onto a *server.MCPServer in a single
// composition point) from the SDD pipeline's sdd_* tool set to the
// task-pipeline commands named in the spec: pipeline:start/step/
// approve/reject/respond/resolve-approval/pause/resume/pause-all/
// approve-context-handoff, workshop:recover-session/rename-session,
// and CRUD over the data model.
//
// The presentation layer itself — how a client renders these results
// — is out of scope (spec §2 Non-goals); this package only adapts the
// core's operations onto request/response MCP calls.
package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hoofy-labs/pipeline-engine/internal/pipelineengine"
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/scheduler"
	"github.com/hoofy-labs/pipeline-engine/internal/store"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Surface is the composition point between the core's six components
// and the MCP transport. It holds no business logic of its own; every
// Handle method below delegates to Store/Engine/Scheduler/Approvals.
type Surface struct {
	Store     *store.Store
	Engine    *pipelineengine.Engine
	Scheduler *scheduler.Scheduler
	Approvals *runner.ApprovalRegistry
	Logger    *zap.Logger
}

// Register adds every command tool to s, mirroring the teacher's
// server.New "one AddTool call per tool instance" registration style.
func (sf *Surface) Register(s *mcpserver.MCPServer) {
	if sf.Logger == nil {
		sf.Logger = zap.NewNop()
	}

	for _, reg := range sf.pipelineTools() {
		s.AddTool(reg.def, reg.handle)
	}
	for _, reg := range sf.workshopTools() {
		s.AddTool(reg.def, reg.handle)
	}
	for _, reg := range sf.crudTools() {
		s.AddTool(reg.def, reg.handle)
	}
}

// toolReg pairs a tool definition with its handler, letting each
// *Tools() method build a plain slice rather than repeating
// s.AddTool(...) boilerplate per command.
type toolReg struct {
	def    mcp.Tool
	handle func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func (sf *Surface) loadTask(ctx context.Context, id int64) (*task.Task, error) {
	tasks, err := sf.Store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcpsurface: listing tasks: %w", err)
	}
	for _, tk := range tasks {
		if tk.ID == id {
			return tk, nil
		}
	}
	return nil, fmt.Errorf("mcpsurface: task %d not found", id)
}

// jsonResult marshals v and wraps it as a tool result's text content,
// the CRUD/query commands' uniform response shape.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func taskResult(tk *task.Task) (*mcp.CallToolResult, error) {
	return jsonResult(tk)
}
