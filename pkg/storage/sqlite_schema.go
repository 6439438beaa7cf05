package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the result tables. Timestamps are stored as Unix
// nanoseconds.
const Schema = `
-- Current evaluation per dossier
CREATE TABLE IF NOT EXISTS evaluations (
    dossier_id TEXT PRIMARY KEY,
    input_version INTEGER NOT NULL,
    rules_version TEXT,
    outcome TEXT NOT NULL,
    evaluated_at INTEGER NOT NULL,
    stored_at INTEGER NOT NULL,
    results TEXT NOT NULL,
    decision TEXT NOT NULL
);

-- One row per stored evaluation
CREATE TABLE IF NOT EXISTS evaluation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dossier_id TEXT NOT NULL,
    input_version INTEGER NOT NULL,
    rules_version TEXT,
    outcome TEXT NOT NULL,
    errors INTEGER NOT NULL,
    warnings INTEGER NOT NULL,
    not_applicable INTEGER NOT NULL,
    evaluated_at INTEGER NOT NULL,
    stored_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_dossier ON evaluation_history(dossier_id, id);
CREATE INDEX IF NOT EXISTS idx_history_stored_at ON evaluation_history(stored_at);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion reads the newest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
