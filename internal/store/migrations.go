package store

import (
	"database/sql"
	"fmt"
)

// migration mirrors the teacher's one-function-per-version convention
// (internal/storage/sqlite/migrations/0NN_*.go) adapted to this store's
// schema. Each migration must be idempotent: it is safe to run against a
// database that already has its effect applied, since PRAGMA user_version
// is the only bookkeeping and a crash between ALTER and the pragma bump
// must not corrupt re-application.
type migration struct {
	version int
	name    string
	apply   func(db *sql.DB) error
}

var migrations = []migration{
	{1, "base_schema", migrateBaseSchema},
	{2, "job_heartbeat", migrateJobHeartbeat},
}

// runMigrations applies every migration newer than the database's current
// PRAGMA user_version, in order, following the
// claude-chronicle store.migrate()/createSchema() shape for the
// version check itself.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("migration %d (%s): set user_version: %w", m.version, m.name, err)
		}
	}
	return nil
}

func migrateBaseSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL DEFAULT 0,
	updated_at          INTEGER NOT NULL DEFAULT 0,
	message_count       INTEGER NOT NULL DEFAULT 0,
	default_model_slug  TEXT NOT NULL DEFAULT '',
	gizmo_id            TEXT NOT NULL DEFAULT '',
	raw_hash            TEXT NOT NULL,
	ingested_at         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_conversations_gizmo ON conversations(gizmo_id);
CREATE INDEX IF NOT EXISTS idx_conversations_raw_hash ON conversations(raw_hash);
CREATE INDEX IF NOT EXISTS idx_conversations_title ON conversations(title);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content_type    TEXT NOT NULL DEFAULT 'text',
	content_text    TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL DEFAULT 0,
	turn_index      INTEGER NOT NULL,
	parent_id       TEXT NOT NULL DEFAULT '',
	text_hash       TEXT NOT NULL DEFAULT '',
	UNIQUE(conversation_id, turn_index)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, turn_index);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	content_text,
	content=messages,
	content_rowid=rowid,
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, content_text) VALUES (new.rowid, new.content_text);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content_text) VALUES ('delete', old.rowid, old.content_text);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content_text) VALUES ('delete', old.rowid, old.content_text);
	INSERT INTO messages_fts(rowid, content_text) VALUES (new.rowid, new.content_text);
END;

CREATE TABLE IF NOT EXISTS chunks (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	start_turn      INTEGER NOT NULL,
	end_turn        INTEGER NOT NULL,
	text            TEXT NOT NULL,
	text_hash       TEXT NOT NULL,
	target_size     INTEGER NOT NULL,
	overlap         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_conversation ON chunks(conversation_id);

CREATE TABLE IF NOT EXISTS projects (
	gizmo_id     TEXT PRIMARY KEY,
	gizmo_type   TEXT NOT NULL DEFAULT 'gpt',
	display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	target_name TEXT NOT NULL DEFAULT '',
	pattern     TEXT NOT NULL,
	status      TEXT NOT NULL,
	progress    TEXT,
	result_path TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	started_at  INTEGER,
	finished_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_target_pattern ON jobs(target_id, pattern);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

// migrateJobHeartbeat adds the last_heartbeat_at column used to detect a
// Job abandoned by a Worker that died without reaching a terminal state
// (spec.md §9 Design Notes).
func migrateJobHeartbeat(db *sql.DB) error {
	exists, err := columnExists(db, "jobs", "last_heartbeat_at")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.Exec(`ALTER TABLE jobs ADD COLUMN last_heartbeat_at INTEGER`)
	return err
}

// columnExists follows the teacher's PRAGMA table_info probe
// (internal/storage/sqlite/migrations/002_external_ref_column.go) for
// checking whether a migration's column already landed.
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("check schema of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt *string
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
