package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
)

// SaveTask performs an atomic full upsert of t and its normalized
// child rows (hand-offs, todos). It is the concrete implementation of
// pipelineengine.Store's persistence boundary. Nested slices/maps with
// no independent query pattern of their own (Outputs, Counters,
// Activity, WorkOrder) are stored as JSON blob columns, following the
// teacher's changes.FileStore convention of marshaling a whole
// sub-structure rather than normalizing every nested field into its
// own column.
func (s *Store) SaveTask(ctx context.Context, t *task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save task: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	outputsJSON, err := json.Marshal(t.Outputs)
	if err != nil {
		return fmt.Errorf("store: marshal outputs: %w", err)
	}
	countersJSON, err := json.Marshal(t.Counters)
	if err != nil {
		return fmt.Errorf("store: marshal counters: %w", err)
	}
	activityJSON, err := json.Marshal(t.Activity)
	if err != nil {
		return fmt.Errorf("store: marshal activity: %w", err)
	}
	var workOrderJSON sql.NullString
	if t.WorkOrder != nil {
		b, err := json.Marshal(t.WorkOrder)
		if err != nil {
			return fmt.Errorf("store: marshal work order: %w", err)
		}
		workOrderJSON = sql.NullString{String: string(b), Valid: true}
	}

	if t.ID == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (title, description, tier, priority, status, auto_mode,
				created_at, started_at, completed_at, current_agent, group_id,
				session_id, pause_reason, paused_from_status, pending_content,
				outputs_json, counters_json, activity_json, work_order_json, review_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Title, t.Description, string(t.Tier), int(t.Priority), string(t.Status), boolToInt(t.AutoMode),
			formatTime(t.CreatedAt), formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt),
			t.CurrentAgent, nullableString(t.GroupID),
			t.SessionID, t.PauseReason, string(t.PausedFromStatus), t.PendingContent,
			string(outputsJSON), string(countersJSON), string(activityJSON), workOrderJSON, t.Outputs.ReviewScore,
		)
		if err != nil {
			return fmt.Errorf("store: insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: last insert id: %w", err)
		}
		t.ID = id
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET title=?, description=?, tier=?, priority=?, status=?, auto_mode=?,
				started_at=?, completed_at=?, current_agent=?, group_id=?,
				session_id=?, pause_reason=?, paused_from_status=?, pending_content=?,
				outputs_json=?, counters_json=?, activity_json=?, work_order_json=?, review_score=?
			WHERE id=?`,
			t.Title, t.Description, string(t.Tier), int(t.Priority), string(t.Status), boolToInt(t.AutoMode),
			formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt), t.CurrentAgent, nullableString(t.GroupID),
			t.SessionID, t.PauseReason, string(t.PausedFromStatus), t.PendingContent,
			string(outputsJSON), string(countersJSON), string(activityJSON), workOrderJSON, t.Outputs.ReviewScore,
			t.ID,
		); err != nil {
			return fmt.Errorf("store: update task: %w", err)
		}
	}

	if err := replaceHandoffs(ctx, tx, t); err != nil {
		return err
	}
	if err := replaceTodos(ctx, tx, t); err != nil {
		return err
	}

	return tx.Commit()
}

// replaceHandoffs deletes the task's stored hand-off rows and
// re-inserts t.Handoffs, assigning ids to any hand-off missing one, so
// the stored chain always mirrors the in-memory slice. The engine's
// own RestartFromStage clears t.Handoffs in memory before calling
// SaveTask, so an empty slice legitimately means "delete all rows for
// this task".
func replaceHandoffs(ctx context.Context, tx *sql.Tx, t *task.Task) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM handoffs WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("store: clearing handoffs: %w", err)
	}
	for i := range t.Handoffs {
		h := &t.Handoffs[i]
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		h.TaskID = t.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO handoffs (id, task_id, stage, agent, model, timestamp, status,
				summary, key_decisions, open_questions, files_modified, next_stage_needs,
				warnings, status_note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.TaskID, string(h.Stage), h.Agent, h.Model, formatTime(h.Timestamp), string(h.Status),
			h.Summary, h.KeyDecisions, h.OpenQuestions, h.FilesModified, h.NextStageNeeds,
			h.Warnings, h.StatusNote,
		); err != nil {
			return fmt.Errorf("store: insert handoff: %w", err)
		}
	}
	return nil
}

func replaceTodos(ctx context.Context, tx *sql.Tx, t *task.Task) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("store: clearing todos: %w", err)
	}
	for stage, items := range t.Todos {
		for i := range items {
			it := &items[i]
			if it.ID == "" {
				it.ID = uuid.NewString()
			}
			it.TaskID = t.ID
			it.Stage = stage
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO todos (id, task_id, stage, subject, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, it.TaskID, string(it.Stage), it.Subject, string(it.Status),
				formatTime(it.CreatedAt), formatTime(it.UpdatedAt),
			); err != nil {
				return fmt.Errorf("store: insert todo: %w", err)
			}
		}
	}
	return nil
}

// LoadTask reads one task and its normalized child rows by id.
func (s *Store) LoadTask(ctx context.Context, id int64) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, tier, priority, status, auto_mode,
			created_at, started_at, completed_at, current_agent, group_id,
			session_id, pause_reason, paused_from_status, pending_content,
			outputs_json, counters_json, activity_json, work_order_json, review_score
		FROM tasks WHERE id = ?`, id)

	t, err := s.scanTask(row)
	if err != nil {
		return nil, err
	}

	if err := s.loadDependencies(ctx, t); err != nil {
		return nil, err
	}
	if err := s.loadHandoffs(ctx, t); err != nil {
		return nil, err
	}
	if err := s.loadTodos(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one tasks row, recovering (and logging) any corrupt
// JSON blob column instead of failing the whole read (spec §4.A).
func (s *Store) scanTask(scanner rowScanner) (*task.Task, error) {
	var (
		t                                                       task.Task
		tier, status, pausedFromStatus                          string
		priority                                                int
		autoMode                                                int
		createdAt                                               string
		startedAt, completedAt                                  sql.NullString
		groupID                                                 sql.NullString
		outputsJSON, countersJSON, activityJSON                 string
		workOrderJSON                                            sql.NullString
		reviewScore                                              float64
	)
	if err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &tier, &priority, &status, &autoMode,
		&createdAt, &startedAt, &completedAt, &t.CurrentAgent, &groupID,
		&t.SessionID, &t.PauseReason, &pausedFromStatus, &t.PendingContent,
		&outputsJSON, &countersJSON, &activityJSON, &workOrderJSON, &reviewScore,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: task not found")
		}
		return nil, fmt.Errorf("store: scanning task: %w", err)
	}

	t.Tier = task.Tier(tier)
	t.Status = task.Status(status)
	t.PausedFromStatus = task.Status(pausedFromStatus)
	t.Priority = task.Priority(priority)
	t.AutoMode = autoMode != 0
	t.CreatedAt = parseTime(createdAt)
	t.StartedAt = parseTimePtr(startedAt)
	t.CompletedAt = parseTimePtr(completedAt)
	if groupID.Valid {
		t.GroupID = groupID.String
	}

	recoverJSON(s.logger, "outputs_json", outputsJSON, &t.Outputs)
	t.Outputs.ReviewScore = reviewScore // review_score column is authoritative, lets callers filter/sort by it in SQL without decoding outputs_json
	recoverJSON(s.logger, "counters_json", countersJSON, &t.Counters)
	recoverJSON(s.logger, "activity_json", activityJSON, &t.Activity)
	if workOrderJSON.Valid {
		var wo task.WorkOrder
		recoverJSON(s.logger, "work_order_json", workOrderJSON.String, &wo)
		t.WorkOrder = &wo
	}

	return &t, nil
}

func (s *Store) loadDependencies(ctx context.Context, t *task.Task) error {
	rows, err := s.db.QueryContext(ctx, `SELECT parent_id FROM task_dependencies WHERE child_id = ?`, t.ID)
	if err != nil {
		return fmt.Errorf("store: loading dependencies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var parentID int64
		if err := rows.Scan(&parentID); err != nil {
			return err
		}
		t.DependsOn = append(t.DependsOn, parentID)
	}
	return rows.Err()
}

func (s *Store) loadHandoffs(ctx context.Context, t *task.Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, stage, agent, model, timestamp, status,
			summary, key_decisions, open_questions, files_modified, next_stage_needs,
			warnings, status_note
		FROM handoffs WHERE task_id = ? ORDER BY timestamp ASC`, t.ID)
	if err != nil {
		return fmt.Errorf("store: loading handoffs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h task.Handoff
		var stage, status, timestamp string
		if err := rows.Scan(
			&h.ID, &h.TaskID, &stage, &h.Agent, &h.Model, &timestamp, &status,
			&h.Summary, &h.KeyDecisions, &h.OpenQuestions, &h.FilesModified, &h.NextStageNeeds,
			&h.Warnings, &h.StatusNote,
		); err != nil {
			return fmt.Errorf("store: scanning handoff: %w", err)
		}
		h.Stage = task.Stage(stage)
		h.Status = task.HandoffOutcome(status)
		h.Timestamp = parseTime(timestamp)
		t.Handoffs = append(t.Handoffs, h)
	}
	return rows.Err()
}

func (s *Store) loadTodos(ctx context.Context, t *task.Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, stage, subject, status, created_at, updated_at
		FROM todos WHERE task_id = ? ORDER BY created_at ASC`, t.ID)
	if err != nil {
		return fmt.Errorf("store: loading todos: %w", err)
	}
	defer rows.Close()
	if t.Todos == nil {
		t.Todos = make(map[task.Stage][]task.TodoItem)
	}
	for rows.Next() {
		var it task.TodoItem
		var stage, status, createdAt, updatedAt string
		if err := rows.Scan(&it.ID, &it.TaskID, &stage, &it.Subject, &status, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("store: scanning todo: %w", err)
		}
		it.Stage = task.Stage(stage)
		it.Status = task.TodoStatus(status)
		it.CreatedAt = parseTime(createdAt)
		it.UpdatedAt = parseTime(updatedAt)
		t.Todos[it.Stage] = append(t.Todos[it.Stage], it)
	}
	return rows.Err()
}

// ListTasks returns every task whose status matches one of statuses,
// or every task when statuses is empty.
func (s *Store) ListTasks(ctx context.Context, statuses ...task.Status) ([]*task.Task, error) {
	query := `
		SELECT id, title, description, tier, priority, status, auto_mode,
			created_at, started_at, completed_at, current_agent, group_id,
			session_id, pause_reason, paused_from_status, pending_content,
			outputs_json, counters_json, activity_json, work_order_json, review_score
		FROM tasks`
	var args []any
	if len(statuses) > 0 {
		placeholders := ""
		for i, st := range statuses {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(st))
		}
		query += " WHERE status IN (" + placeholders + ")"
	}
	query += " ORDER BY priority DESC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing tasks: %w", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range out {
		if err := s.loadDependencies(ctx, t); err != nil {
			return nil, err
		}
		if err := s.loadHandoffs(ctx, t); err != nil {
			return nil, err
		}
		if err := s.loadTodos(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteTask removes a task and (via ON DELETE CASCADE) its hand-offs,
// todos and dependency edges.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting task %d: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	parsed := parseTime(ns.String)
	return &parsed
}
