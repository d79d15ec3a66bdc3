package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkshopSession is a free-form chat session's persisted header
// (spec §4.E.7).
type WorkshopSession struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkshopMessage is one turn of a workshop session's chat history.
type WorkshopMessage struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// CreateWorkshopSession inserts a new session with the default title,
// returning its generated id. Timestamps are stamped explicitly in Go
// (RFC3339Nano, matching formatTime/parseTime) rather than left to
// SQLite's datetime('now') default, whose space-separated format
// parseTime can't round-trip.
func (s *Store) CreateWorkshopSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workshop_sessions (id, created_at, updated_at) VALUES (?, ?, ?)`, id, now, now)
	if err != nil {
		return "", fmt.Errorf("store: creating workshop session: %w", err)
	}
	return id, nil
}

// RenameSession implements pipelineengine.WorkshopRenamer: persists a
// session's auto-named (or user-chosen) title.
func (s *Store) RenameSession(ctx context.Context, sessionID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workshop_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("store: renaming workshop session %s: %w", sessionID, err)
	}
	return nil
}

// LoadWorkshopSession reads one session's header by id, for
// workshop:recover-session.
func (s *Store) LoadWorkshopSession(ctx context.Context, id string) (*WorkshopSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at FROM workshop_sessions WHERE id = ?`, id)

	var (
		sess                 WorkshopSession
		createdAt, updatedAt string
	)
	if err := row.Scan(&sess.ID, &sess.Title, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: workshop session %s not found", id)
		}
		return nil, fmt.Errorf("store: loading workshop session %s: %w", id, err)
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	return &sess, nil
}

// ListWorkshopSessions returns every session, most recently updated
// first.
func (s *Store) ListWorkshopSessions(ctx context.Context) ([]*WorkshopSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at FROM workshop_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: listing workshop sessions: %w", err)
	}
	defer rows.Close()

	var out []*WorkshopSession
	for rows.Next() {
		var (
			sess                 WorkshopSession
			createdAt, updatedAt string
		)
		if err := rows.Scan(&sess.ID, &sess.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning workshop session: %w", err)
		}
		sess.CreatedAt = parseTime(createdAt)
		sess.UpdatedAt = parseTime(updatedAt)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// AppendWorkshopMessage records one chat turn and bumps the session's
// updated_at so ListWorkshopSessions reflects recent activity.
func (s *Store) AppendWorkshopMessage(ctx context.Context, sessionID, role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append message: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workshop_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, now,
	); err != nil {
		return fmt.Errorf("store: appending workshop message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE workshop_sessions SET updated_at = ? WHERE id = ?`, now, sessionID,
	); err != nil {
		return fmt.Errorf("store: touching workshop session %s: %w", sessionID, err)
	}
	return tx.Commit()
}

// ListWorkshopMessages returns a session's full chat history in order,
// the recovery path for workshop:recover-session.
func (s *Store) ListWorkshopMessages(ctx context.Context, sessionID string) ([]*WorkshopMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM workshop_messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: listing workshop messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*WorkshopMessage
	for rows.Next() {
		var (
			msg       WorkshopMessage
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scanning workshop message: %w", err)
		}
		msg.CreatedAt = parseTime(createdAt)
		out = append(out, &msg)
	}
	return out, rows.Err()
}
