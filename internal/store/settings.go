package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSetting reads one scoped key. ok is false when the key is absent;
// this is distinct from an empty-string value, which is a valid stored
// setting.
func (s *Store) GetSetting(ctx context.Context, scope, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE scope = ? AND key = ?`, scope, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: reading setting %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

// SetSetting upserts one scoped key/value pair. This table is a
// generic home for Scheduler-level runtime state (capacity ceilings,
// pause flags) distinct from internal/settingsconfig's file-based
// per-stage model/turn/timeout configuration: the two never read or
// write the same keys.
func (s *Store) SetSetting(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value`, scope, key, value)
	if err != nil {
		return fmt.Errorf("store: setting %s/%s: %w", scope, key, err)
	}
	return nil
}

// ListSettings returns every key/value pair stored under scope.
func (s *Store) ListSettings(ctx context.Context, scope string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE scope = ?`, scope)
	if err != nil {
		return nil, fmt.Errorf("store: listing settings for %s: %w", scope, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// DeleteSetting removes one scoped key. Deleting an absent key is a
// no-op.
func (s *Store) DeleteSetting(ctx context.Context, scope, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE scope = ? AND key = ?`, scope, key)
	if err != nil {
		return fmt.Errorf("store: deleting setting %s/%s: %w", scope, key, err)
	}
	return nil
}
