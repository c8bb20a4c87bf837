package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS dialogue_session (
    session_id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT 'New conversation',
    message_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dialogue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    session_id TEXT NOT NULL REFERENCES dialogue_session(session_id) ON DELETE CASCADE,
    user_query TEXT NOT NULL,
    system_reply TEXT NOT NULL,
    emotion TEXT,
    risk_level TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scl90_record (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    total_score INTEGER NOT NULL,
    average_score REAL NOT NULL,
    positive_items_count INTEGER NOT NULL,
    factor_results TEXT NOT NULL,
    abnormal_items TEXT NOT NULL,
    answers TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS knowledge_base (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    scope TEXT NOT NULL CHECK(scope IN ('shared', 'private')),
    owner_id TEXT,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dialogue_session ON dialogue(session_id, id);
CREATE INDEX IF NOT EXISTS idx_dialogue_owner ON dialogue(owner_id);
CREATE INDEX IF NOT EXISTS idx_dialogue_session_owner ON dialogue_session(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_scl90_owner ON scl90_record(owner_id, id);
CREATE INDEX IF NOT EXISTS idx_knowledge_scope ON knowledge_base(scope, owner_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "knowledge vectors",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS knowledge_vectors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    knowledge_id INTEGER,
    scope TEXT NOT NULL,
    owner_id TEXT,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    embedding TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_knowledge_vectors_scope ON knowledge_vectors(scope, owner_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_vectors_item ON knowledge_vectors(knowledge_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
