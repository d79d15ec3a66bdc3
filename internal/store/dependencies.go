package store

import (
	"context"
	"fmt"
)

// AddDependency records that child depends on parent completing first
// (spec §4.B "Dependency graph"). The edge is idempotent: adding the
// same edge twice is a no-op.
func (s *Store) AddDependency(ctx context.Context, parentID, childID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_dependencies (parent_id, child_id) VALUES (?, ?)
		ON CONFLICT (parent_id, child_id) DO NOTHING`, parentID, childID)
	if err != nil {
		return fmt.Errorf("store: adding dependency %d->%d: %w", parentID, childID, err)
	}
	return nil
}

// RemoveDependency deletes one edge. Removing an edge that doesn't
// exist is a no-op.
func (s *Store) RemoveDependency(ctx context.Context, parentID, childID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM task_dependencies WHERE parent_id = ? AND child_id = ?`, parentID, childID)
	if err != nil {
		return fmt.Errorf("store: removing dependency %d->%d: %w", parentID, childID, err)
	}
	return nil
}

// Dependents returns every task id that depends on parentID.
func (s *Store) Dependents(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT child_id FROM task_dependencies WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, fmt.Errorf("store: loading dependents: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var childID int64
		if err := rows.Scan(&childID); err != nil {
			return nil, err
		}
		out = append(out, childID)
	}
	return out, rows.Err()
}
