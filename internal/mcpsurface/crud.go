package mcpsurface

import (
	"context"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"github.com/mark3labs/mcp-go/mcp"
)

// crudTools registers the data-model CRUD commands named in spec §6:
// tasks, task groups, dependency edges, and scoped settings.
func (sf *Surface) crudTools() []toolReg {
	return []toolReg{
		{def: mcp.NewTool("task_create",
			mcp.WithDescription("Create a backlog task."),
			mcp.WithString("title", mcp.Required(), mcp.Description("task title")),
			mcp.WithString("description", mcp.Description("task description")),
			mcp.WithString("tier", mcp.Required(), mcp.Description("L1, L2, or L3")),
			mcp.WithNumber("priority", mcp.Description("task priority")),
			mcp.WithString("groupId", mcp.Description("owning task group id, if any")),
		), handle: sf.handleTaskCreate},

		{def: mcp.NewTool("task_get",
			mcp.WithDescription("Fetch a single task by id."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleTaskGet},

		{def: mcp.NewTool("task_list",
			mcp.WithDescription("List tasks, optionally filtered by status."),
			mcp.WithString("status", mcp.Description("status to filter by; omit for all tasks")),
		), handle: sf.handleTaskList},

		{def: mcp.NewTool("task_update",
			mcp.WithDescription("Update a task's title, description, or priority."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
			mcp.WithString("title", mcp.Description("new title")),
			mcp.WithString("description", mcp.Description("new description")),
			mcp.WithNumber("priority", mcp.Description("new priority")),
		), handle: sf.handleTaskUpdate},

		{def: mcp.NewTool("task_delete",
			mcp.WithDescription("Delete a task and its child rows."),
			mcp.WithNumber("taskId", mcp.Required(), mcp.Description("task id")),
		), handle: sf.handleTaskDelete},

		{def: mcp.NewTool("dependency_add",
			mcp.WithDescription("Record that parentId must complete before childId can start."),
			mcp.WithNumber("parentId", mcp.Required(), mcp.Description("prerequisite task id")),
			mcp.WithNumber("childId", mcp.Required(), mcp.Description("dependent task id")),
		), handle: sf.handleDependencyAdd},

		{def: mcp.NewTool("dependency_remove",
			mcp.WithDescription("Remove a dependency edge between two tasks."),
			mcp.WithNumber("parentId", mcp.Required(), mcp.Description("prerequisite task id")),
			mcp.WithNumber("childId", mcp.Required(), mcp.Description("dependent task id")),
		), handle: sf.handleDependencyRemove},

		{def: mcp.NewTool("group_create",
			mcp.WithDescription("Create a task group."),
			mcp.WithString("title", mcp.Required(), mcp.Description("group title")),
			mcp.WithNumber("maxConcurrency", mcp.Description("max tasks running concurrently within the group")),
		), handle: sf.handleGroupCreate},

		{def: mcp.NewTool("group_list",
			mcp.WithDescription("List task groups."),
		), handle: sf.handleGroupList},

		{def: mcp.NewTool("setting_get",
			mcp.WithDescription("Read a scoped setting."),
			mcp.WithString("scope", mcp.Required(), mcp.Description("setting scope, e.g. scheduler")),
			mcp.WithString("key", mcp.Required(), mcp.Description("setting key")),
		), handle: sf.handleSettingGet},

		{def: mcp.NewTool("setting_set",
			mcp.WithDescription("Write a scoped setting."),
			mcp.WithString("scope", mcp.Required(), mcp.Description("setting scope, e.g. scheduler")),
			mcp.WithString("key", mcp.Required(), mcp.Description("setting key")),
			mcp.WithString("value", mcp.Required(), mcp.Description("setting value")),
		), handle: sf.handleSettingSet},

		{def: mcp.NewTool("setting_list",
			mcp.WithDescription("List every setting in a scope."),
			mcp.WithString("scope", mcp.Required(), mcp.Description("setting scope, e.g. scheduler")),
		), handle: sf.handleSettingList},

		{def: mcp.NewTool("setting_delete",
			mcp.WithDescription("Delete a scoped setting."),
			mcp.WithString("scope", mcp.Required(), mcp.Description("setting scope, e.g. scheduler")),
			mcp.WithString("key", mcp.Required(), mcp.Description("setting key")),
		), handle: sf.handleSettingDelete},
	}
}

func (sf *Surface) handleTaskCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tk := &task.Task{
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
		Tier:        task.Tier(req.GetString("tier", "")),
		Priority:    task.Priority(int(req.GetFloat("priority", 0))),
		GroupID:     req.GetString("groupId", ""),
		Status:      task.StatusBacklog,
	}
	if !task.ValidTier(tk.Tier) {
		return mcp.NewToolResultError("tier must be one of L1, L2, L3"), nil
	}

	if err := sf.Store.SaveTask(ctx, tk); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleTaskGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	tk, err := sf.Store.LoadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleTaskList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var statuses []task.Status
	if s := req.GetString("status", ""); s != "" {
		statuses = append(statuses, task.Status(s))
	}

	tasks, err := sf.Store.ListTasks(ctx, statuses...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tasks)
}

func (sf *Surface) handleTaskUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	tk, err := sf.Store.LoadTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if title := req.GetString("title", ""); title != "" {
		tk.Title = title
	}
	if desc := req.GetString("description", ""); desc != "" {
		tk.Description = desc
	}
	if p := req.GetFloat("priority", -1); p >= 0 {
		tk.Priority = task.Priority(int(p))
	}

	if err := sf.Store.SaveTask(ctx, tk); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return taskResult(tk)
}

func (sf *Surface) handleTaskDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(req.GetFloat("taskId", 0))
	if err := sf.Store.DeleteTask(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted"), nil
}

func (sf *Surface) handleDependencyAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID := int64(req.GetFloat("parentId", 0))
	childID := int64(req.GetFloat("childId", 0))
	if err := sf.Store.AddDependency(ctx, parentID, childID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("added"), nil
}

func (sf *Surface) handleDependencyRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID := int64(req.GetFloat("parentId", 0))
	childID := int64(req.GetFloat("childId", 0))
	if err := sf.Store.RemoveDependency(ctx, parentID, childID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("removed"), nil
}

func (sf *Surface) handleGroupCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g := &task.TaskGroup{
		Title:          req.GetString("title", ""),
		Status:         task.GroupPlanning,
		MaxConcurrency: int(req.GetFloat("maxConcurrency", 1)),
	}
	if err := sf.Store.SaveGroup(ctx, g); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(g)
}

func (sf *Surface) handleGroupList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := sf.Store.ListGroups(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(groups)
}

func (sf *Surface) handleSettingGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := req.GetString("scope", "")
	key := req.GetString("key", "")

	val, ok, err := sf.Store.GetSetting(ctx, scope, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError("setting not found"), nil
	}
	return mcp.NewToolResultText(val), nil
}

func (sf *Surface) handleSettingSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := req.GetString("scope", "")
	key := req.GetString("key", "")
	value := req.GetString("value", "")

	if err := sf.Store.SetSetting(ctx, scope, key, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("set"), nil
}

func (sf *Surface) handleSettingList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := req.GetString("scope", "")
	all, err := sf.Store.ListSettings(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(all)
}

func (sf *Surface) handleSettingDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := req.GetString("scope", "")
	key := req.GetString("key", "")
	if err := sf.Store.DeleteSetting(ctx, scope, key); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted"), nil
}
