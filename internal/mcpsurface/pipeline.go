package mcpsurface

import (
	"context"
	"fmt"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/pipelineengine"
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"github.com/mark3labs/mcp-go/mcp"
)

// pipelineTools registers every `pipeline:*` command named in spec §6.
func (sf *Surface) pipelineTools() []toolReg {
	return []toolReg{
		{def: mcp.NewTool("pipeline_start",
			mcp.WithDescription("Start a backlog task's pipeline: runs its first stage."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleStart},

		{def: mcp.NewTool("pipeline_step",
			mcp.WithDescription("Advance a task's pipeline by one stage, without granting approval for a gated stage."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleStep},

		{def: mcp.NewTool("pipeline_approve",
			mcp.WithDescription("Approve the current stage's output, satisfying its pause gate, and advance."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleApprove},

		{def: mcp.NewTool("pipeline_reject",
			mcp.WithDescription("Reject the current stage's output, restarting the same stage with feedback."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
			mcp.WithString("feedback", mcp.Required(), mcp.Description("why the output was rejected")),
		), handle: sf.handleReject},

		{def: mcp.NewTool("pipeline_respond",
			mcp.WithDescription("Send free-form text into a task's active stage session and continue it."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
			mcp.WithString("text", mcp.Required(), mcp.Description("message to send")),
		), handle: sf.handleRespond},

		{def: mcp.NewTool("pipeline_resolve_approval",
			mcp.WithDescription("Resolve a pending tool-use approval request raised during a stage session."),
			mcp.WithString("requestId", mcp.Required(), mcp.Description("id from an approval-request event")),
			mcp.WithBoolean("allow", mcp.Required(), mcp.Description("allow or deny the tool call")),
			mcp.WithString("message", mcp.Description("denial reason, required when allow=false")),
		), handle: sf.handleResolveApproval},

		{def: mcp.NewTool("pipeline_pause",
			mcp.WithDescription("Pause a running task; it resumes from the same stage on pipeline_resume."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handlePause},

		{def: mcp.NewTool("pipeline_resume",
			mcp.WithDescription("Resume a task paused by pipeline_pause."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleResume},

		{def: mcp.NewTool("pipeline_pause_all",
			mcp.WithDescription("Pause every currently-running task."),
		), handle: sf.handlePauseAll},

		{def: mcp.NewTool("pipeline_approve_context_handoff",
			mcp.WithDescription("Approve a pending context-handoff proposal, resuming the task with a fresh session."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleApproveContextHandoff},
	}
}

func (sf *Surface) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return sf.runStage(ctx, req, false)
}

func (sf *Surface) handleStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return sf.runStage(ctx, req, false)
}

func (sf *Surface) handleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return sf.runStage(ctx, req, true)
}

// runStage loads taskId and re-enters the engine's state machine,
// approved controlling whether a gated stage's pause is satisfied
// (spec §4.E.3 step 2 "approved=true").
func (sf *Surface) runStage(ctx context.Context, req mcp.CallToolRequest, approved bool) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	tk, err := sf.loadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := sf.Engine.RunStage(ctx, tk, pipelineengine.Observer{}, approved); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleReject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	feedback := req.GetString("feedback", "")

	tk, err := sf.loadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stage := tk.CurrentStage()
	if tk.Status == task.StatusAwaitingReview {
		stage = task.Stage(tk.PausedFromStatus)
	}
	if stage == "" {
		return mcp.NewToolResultError(fmt.Sprintf("task %d has no stage to reject (status %q)", id, tk.Status)), nil
	}
	pipelineengine.Reject(tk, stage, feedback, time.Now())
	if err := sf.Store.SaveTask(ctx, tk); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleRespond(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	text := req.GetString("text", "")

	tk, err := sf.loadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk.PendingContent += text
	if err := sf.Engine.RunStage(ctx, tk, pipelineengine.Observer{}, false); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleResolveApproval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := req.GetString("requestId", "")
	allow := req.GetBool("allow", false)
	message := req.GetString("message", "")

	if err := sf.Approvals.Resolve(requestID, runner.ApprovalDecision{Allow: allow, Message: message}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("resolved"), nil
}

func (sf *Surface) handlePause(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	tk, err := sf.loadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk.PausedFromStatus = tk.Status
	tk.Status = task.StatusPaused
	tk.PauseReason = "manual"
	if err := sf.Store.SaveTask(ctx, tk); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	tk, err := sf.loadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if tk.Status != task.StatusPaused {
		return mcp.NewToolResultError(fmt.Sprintf("task %d is not paused", id)), nil
	}

	tk.Status = tk.PausedFromStatus
	tk.PausedFromStatus = ""
	tk.PauseReason = ""
	if err := sf.Store.SaveTask(ctx, tk); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handlePauseAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := sf.Store.ListTasks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	paused := 0
	for _, tk := range tasks {
		if tk.CurrentStage() == "" {
			continue
		}
		tk.PausedFromStatus = tk.Status
		tk.Status = task.StatusPaused
		tk.PauseReason = "manual"
		if err := sf.Store.SaveTask(ctx, tk); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		paused++
	}
	return mcp.NewToolResultText(fmt.Sprintf("paused %d task(s)", paused)), nil
}

func (sf *Surface) handleApproveContextHandoff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	if err := sf.Scheduler.ApproveContextHandoff(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("context handoff approved"), nil
}
