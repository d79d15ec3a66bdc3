package store_test

import (
	"context"
	"testing"

	"github.com/hoofy-labs/pipeline-engine/internal/store"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStore creates a Store backed by a temp project directory for
// isolation, mirroring the teacher's memory.newTestStore helper.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mkTask(title string) *task.Task {
	return &task.Task{
		Title:  title,
		Tier:   task.TierL1,
		Status: task.StatusPlan,
	}
}

func TestNew_CreatesDBFile(t *testing.T) {
	newTestStore(t)
}

func TestSaveTask_AssignsIDOnInsert(t *testing.T) {
	s := newTestStore(t)
	tk := mkTask("first task")

	require.NoError(t, s.SaveTask(context.Background(), tk))
	assert.NotZero(t, tk.ID)
}

func TestSaveTask_RoundTripsFields(t *testing.T) {
	s := newTestStore(t)
	tk := mkTask("round trip")
	tk.Description = "a task description"
	tk.Priority = task.Priority(5)
	tk.Outputs.ReviewScore = 0.87
	tk.Counters.PlanReviewCount = 2
	tk.Activity = append(tk.Activity, task.ActivityEntry{Kind: "stage_start", Message: "started"})

	require.NoError(t, s.SaveTask(context.Background(), tk))

	got, err := s.LoadTask(context.Background(), tk.ID)
	require.NoError(t, err)

	assert.Equal(t, tk.Title, got.Title)
	assert.Equal(t, tk.Description, got.Description)
	assert.Equal(t, tk.Priority, got.Priority)
	assert.Equal(t, tk.Outputs.ReviewScore, got.Outputs.ReviewScore)
	assert.Equal(t, tk.Counters.PlanReviewCount, got.Counters.PlanReviewCount)
	if assert.Len(t, got.Activity, 1) {
		assert.Equal(t, "started", got.Activity[0].Message)
	}
}

func TestSaveTask_UpdateReplacesHandoffsAndTodos(t *testing.T) {
	s := newTestStore(t)
	tk := mkTask("with children")
	tk.Handoffs = []task.Handoff{{Stage: task.StagePlan, Status: task.HandoffCompleted, Summary: "first pass"}}
	tk.Todos = map[task.Stage][]task.TodoItem{
		task.StageImplement: {{Subject: "wire the thing", Status: task.TodoPending}},
	}
	require.NoError(t, s.SaveTask(context.Background(), tk))

	// Update with a shorter hand-off chain and no todos; replaceHandoffs
	// and replaceTodos must delete the old rows rather than merge.
	tk.Handoffs = []task.Handoff{{Stage: task.StageVerify, Status: task.HandoffCompleted, Summary: "second pass"}}
	tk.Todos = map[task.Stage][]task.TodoItem{}
	require.NoError(t, s.SaveTask(context.Background(), tk))

	got, err := s.LoadTask(context.Background(), tk.ID)
	require.NoError(t, err)
	if assert.Len(t, got.Handoffs, 1) {
		assert.Equal(t, "second pass", got.Handoffs[0].Summary)
	}
	assert.Empty(t, got.Todos[task.StageImplement])
}

func TestLoadTask_CorruptOutputsJSONRecoversZeroValue(t *testing.T) {
	s := newTestStore(t)
	tk := mkTask("corrupt blob")
	require.NoError(t, s.SaveTask(context.Background(), tk))

	require.NoError(t, store.ExecForTest(s, `UPDATE tasks SET outputs_json = 'not json' WHERE id = ?`, tk.ID))

	got, err := s.LoadTask(context.Background(), tk.ID)
	require.NoError(t, err, "LoadTask should not fail on corrupt json")
	assert.Empty(t, got.Outputs.Plan)
	assert.Zero(t, got.Outputs.ReviewScore)
}

func TestListTasks_FiltersByStatus(t *testing.T) {
	s := newTestStore(t)
	pending := mkTask("pending one")
	pending.Status = task.StatusBacklog
	running := mkTask("running one")
	running.Status = task.StatusImplement

	require.NoError(t, s.SaveTask(context.Background(), pending))
	require.NoError(t, s.SaveTask(context.Background(), running))

	got, err := s.ListTasks(context.Background(), task.StatusImplement)
	require.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, running.ID, got[0].ID)
	}
}

func TestDeleteTask_CascadesChildren(t *testing.T) {
	s := newTestStore(t)
	tk := mkTask("to delete")
	tk.Handoffs = []task.Handoff{{Stage: task.StagePlan, Status: task.HandoffCompleted}}
	require.NoError(t, s.SaveTask(context.Background(), tk))

	require.NoError(t, s.DeleteTask(context.Background(), tk.ID))

	_, err := s.LoadTask(context.Background(), tk.ID)
	assert.Error(t, err)
}

func TestDependencies_AddRemoveIdempotent(t *testing.T) {
	s := newTestStore(t)
	parent := mkTask("parent")
	child := mkTask("child")
	require.NoError(t, s.SaveTask(context.Background(), parent))
	require.NoError(t, s.SaveTask(context.Background(), child))

	require.NoError(t, s.AddDependency(context.Background(), parent.ID, child.ID))
	require.NoError(t, s.AddDependency(context.Background(), parent.ID, child.ID), "repeat add should be a no-op")

	deps, err := s.Dependents(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{child.ID}, deps)

	require.NoError(t, s.RemoveDependency(context.Background(), parent.ID, child.ID))
	deps, err = s.Dependents(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestGroups_SaveLoadList(t *testing.T) {
	s := newTestStore(t)
	g := &task.TaskGroup{Title: "feature x", Status: task.GroupPlanning, MaxConcurrency: 2}

	require.NoError(t, s.SaveGroup(context.Background(), g))
	assert.NotEmpty(t, g.ID)

	got, err := s.LoadGroup(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Title, got.Title)
	assert.Equal(t, g.MaxConcurrency, got.MaxConcurrency)

	g.Status = task.GroupRunning
	require.NoError(t, s.SaveGroup(context.Background(), g))
	all, err := s.ListGroups(context.Background())
	require.NoError(t, err)
	if assert.Len(t, all, 1) {
		assert.Equal(t, task.GroupRunning, all[0].Status)
	}
}

func TestSettings_GetSetListDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSetting(ctx, "scheduler", "max_concurrent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "scheduler", "max_concurrent", "4"))
	val, ok, err := s.GetSetting(ctx, "scheduler", "max_concurrent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4", val)

	require.NoError(t, s.SetSetting(ctx, "scheduler", "max_concurrent", "8"))
	all, err := s.ListSettings(ctx, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, "8", all["max_concurrent"])

	require.NoError(t, s.DeleteSetting(ctx, "scheduler", "max_concurrent"))
	_, ok, err = s.GetSetting(ctx, "scheduler", "max_concurrent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkshop_CreateRenameAppendRecover(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorkshopSession(ctx)
	require.NoError(t, err)

	require.NoError(t, s.RenameSession(ctx, id, "Refactor the scheduler"))
	require.NoError(t, s.AppendWorkshopMessage(ctx, id, "user", "how should I structure this?"))
	require.NoError(t, s.AppendWorkshopMessage(ctx, id, "assistant", "start with the interface."))

	sess, err := s.LoadWorkshopSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Refactor the scheduler", sess.Title)
	assert.False(t, sess.CreatedAt.IsZero())
	assert.False(t, sess.UpdatedAt.IsZero())

	msgs, err := s.ListWorkshopMessages(ctx, id)
	require.NoError(t, err)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "user", msgs[0].Role)
		assert.Equal(t, "assistant", msgs[1].Role)
	}

	sessions, err := s.ListWorkshopSessions(ctx)
	require.NoError(t, err)
	if assert.Len(t, sessions, 1) {
		assert.Equal(t, id, sessions[0].ID)
	}
}
