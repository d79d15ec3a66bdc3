package mcpsurface

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// workshopTools registers the `workshop:*` commands named in spec §6.
func (sf *Surface) workshopTools() []toolReg {
	return []toolReg{
		{def: mcp.NewTool("workshop_recover_session",
			mcp.WithDescription("Load a free-form chat session's title and full message history."),
			mcp.WithString("sessionId", mcp.Required(), mcp.Description("workshop session id")),
		), handle: sf.handleRecoverSession},

		{def: mcp.NewTool("workshop_rename_session",
			mcp.WithDescription("Rename a free-form chat session."),
			mcp.WithString("sessionId", mcp.Required(), mcp.Description("workshop session id")),
			mcp.WithString("title", mcp.Required(), mcp.Description("new title")),
		), handle: sf.handleRenameSession},
	}
}

type workshopRecovery struct {
	Session  any `json:"session"`
	Messages any `json:"messages"`
}

func (sf *Surface) handleRecoverSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("sessionId", "")

	sess, err := sf.Store.LoadWorkshopSession(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msgs, err := sf.Store.ListWorkshopMessages(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(workshopRecovery{Session: sess, Messages: msgs})
}

func (sf *Surface) handleRenameSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("sessionId", "")
	title := req.GetString("title", "")

	if err := sf.Store.RenameSession(ctx, id, title); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("renamed"), nil
}
