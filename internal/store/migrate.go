package store

import "fmt"

// migrate creates every table the store needs if absent, then widens
// existing tables additively. New tables use the teacher's
// CREATE TABLE IF NOT EXISTS convention (memory.Store.migrate);
// existing tables gain new columns through ensureColumn rather than a
// destructive ALTER/DROP cycle, per spec §4.A's additive-migration
// contract.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			title             TEXT    NOT NULL,
			description       TEXT    NOT NULL DEFAULT '',
			tier              TEXT    NOT NULL,
			priority          INTEGER NOT NULL DEFAULT 0,
			status            TEXT    NOT NULL,
			auto_mode         INTEGER NOT NULL DEFAULT 0,
			created_at        TEXT    NOT NULL DEFAULT (datetime('now')),
			started_at        TEXT,
			completed_at      TEXT,
			current_agent     TEXT    NOT NULL DEFAULT '',
			group_id          TEXT,
			session_id        TEXT    NOT NULL DEFAULT '',
			pause_reason      TEXT    NOT NULL DEFAULT '',
			paused_from_status TEXT   NOT NULL DEFAULT '',
			pending_content   TEXT    NOT NULL DEFAULT '',
			outputs_json      TEXT    NOT NULL DEFAULT '{}',
			counters_json     TEXT    NOT NULL DEFAULT '{}',
			activity_json     TEXT    NOT NULL DEFAULT '[]',
			work_order_json   TEXT,
			FOREIGN KEY (group_id) REFERENCES task_groups(id)
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status  ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_group   ON tasks(group_id);

		CREATE TABLE IF NOT EXISTS handoffs (
			id                 TEXT PRIMARY KEY,
			task_id            INTEGER NOT NULL,
			stage              TEXT    NOT NULL,
			agent              TEXT    NOT NULL DEFAULT '',
			model              TEXT    NOT NULL DEFAULT '',
			timestamp          TEXT    NOT NULL,
			status             TEXT    NOT NULL,
			summary            TEXT    NOT NULL DEFAULT '',
			key_decisions      TEXT    NOT NULL DEFAULT '',
			open_questions     TEXT    NOT NULL DEFAULT '',
			files_modified     TEXT    NOT NULL DEFAULT '',
			next_stage_needs   TEXT    NOT NULL DEFAULT '',
			warnings           TEXT    NOT NULL DEFAULT '',
			status_note        TEXT    NOT NULL DEFAULT '',
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_handoffs_task ON handoffs(task_id, timestamp);

		CREATE TABLE IF NOT EXISTS todos (
			id         TEXT PRIMARY KEY,
			task_id    INTEGER NOT NULL,
			stage      TEXT    NOT NULL,
			subject    TEXT    NOT NULL,
			status     TEXT    NOT NULL,
			created_at TEXT    NOT NULL,
			updated_at TEXT    NOT NULL,
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_todos_task ON todos(task_id, stage);

		CREATE TABLE IF NOT EXISTS task_dependencies (
			parent_id INTEGER NOT NULL,
			child_id  INTEGER NOT NULL,
			PRIMARY KEY (parent_id, child_id),
			FOREIGN KEY (parent_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY (child_id)  REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_deps_child ON task_dependencies(child_id);

		CREATE TABLE IF NOT EXISTS task_groups (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL,
			status           TEXT NOT NULL,
			execution_order_json TEXT NOT NULL DEFAULT '[]',
			shared_context   TEXT NOT NULL DEFAULT '',
			max_concurrency  INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS settings (
			scope TEXT NOT NULL,
			key   TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		);

		CREATE TABLE IF NOT EXISTS workshop_sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT 'New session',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS workshop_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT    NOT NULL,
			role       TEXT    NOT NULL,
			content    TEXT    NOT NULL,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (session_id) REFERENCES workshop_sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_workshop_msg_session ON workshop_messages(session_id, created_at);
	`
	if _, err := s.execHook(s.db, schema); err != nil {
		return err
	}

	// Additive widenings for columns introduced after the initial
	// layout. ensureColumn is a no-op against a database that already
	// has the column.
	widenings := []struct{ table, column, ddl string }{
		{"tasks", "review_score", "ALTER TABLE tasks ADD COLUMN review_score REAL NOT NULL DEFAULT 0"},
	}
	for _, w := range widenings {
		if err := s.ensureColumn(w.table, w.column, w.ddl); err != nil {
			return err
		}
	}

	return nil
}

// ensureColumn queries table's column descriptor via PRAGMA table_info
// and, if column is absent, issues ddl to add it. This is the additive
// migration mechanism spec §4.A describes: new columns never trigger
// a destructive rebuild of an existing table.
func (s *Store) ensureColumn(table, column, ddl string) error {
	rows, err := s.queryHook(s.db, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("store: inspecting %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dflt       any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("store: scanning table_info(%s): %w", table, err)
		}
		if name == column {
			return rows.Err()
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := s.execHook(s.db, ddl); err != nil {
		return fmt.Errorf("store: adding column %s.%s: %w", table, column, err)
	}
	return nil
}
