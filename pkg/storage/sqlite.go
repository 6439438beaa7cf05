package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ceeval-hq/verdict/pkg/decision"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/verdict.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the database and applies the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}

	logger := slog.Default().With("component", "storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite result store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Replace implements Store. The version check, the swap and the history
// insert run in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, rec *Record) error {
	if rec == nil || rec.DossierID == "" {
		return NewStorageError("sqlite", "replace", errors.New("record requires a dossier id"))
	}

	stored := *rec
	if stored.StoredAt.IsZero() {
		stored.StoredAt = s.now()
	}
	results, err := json.Marshal(stored.Results)
	if err != nil {
		return NewStorageError("sqlite", "marshal_results", err)
	}
	dec, err := json.Marshal(stored.Decision)
	if err != nil {
		return NewStorageError("sqlite", "marshal_decision", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	var current uint64
	err = tx.QueryRowContext(ctx,
		`SELECT input_version FROM evaluations WHERE dossier_id = ?`, stored.DossierID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return NewStorageError("sqlite", "read_version", err)
	case current > stored.InputVersion:
		return fmt.Errorf("%w: dossier %s has version %d, got %d",
			ErrStaleVersion, stored.DossierID, current, stored.InputVersion)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluations (
			dossier_id, input_version, rules_version, outcome,
			evaluated_at, stored_at, results, decision
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dossier_id) DO UPDATE SET
			input_version = excluded.input_version,
			rules_version = excluded.rules_version,
			outcome = excluded.outcome,
			evaluated_at = excluded.evaluated_at,
			stored_at = excluded.stored_at,
			results = excluded.results,
			decision = excluded.decision
	`,
		stored.DossierID, int64(stored.InputVersion), stored.RulesVersion, string(stored.Decision.Outcome),
		stored.EvaluatedAt.UnixNano(), stored.StoredAt.UnixNano(), string(results), string(dec),
	)
	if err != nil {
		return NewStorageError("sqlite", "upsert_evaluation", err)
	}

	h := historyEntry(&stored)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluation_history (
			dossier_id, input_version, rules_version, outcome,
			errors, warnings, not_applicable, evaluated_at, stored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.DossierID, int64(h.InputVersion), h.RulesVersion, string(h.Outcome),
		h.Errors, h.Warnings, h.NotApplicable, h.EvaluatedAt.UnixNano(), h.StoredAt.UnixNano(),
	)
	if err != nil {
		return NewStorageError("sqlite", "insert_history", err)
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, dossierID string) (*Record, error) {
	var (
		rec                   Record
		version               int64
		rulesVersion          sql.NullString
		outcome               string
		evaluatedAt, storedAt int64
		results, dec          string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT dossier_id, input_version, rules_version, outcome,
			evaluated_at, stored_at, results, decision
		FROM evaluations WHERE dossier_id = ?
	`, dossierID).Scan(&rec.DossierID, &version, &rulesVersion, &outcome, &evaluatedAt, &storedAt, &results, &dec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dossierID)
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}

	rec.InputVersion = uint64(version)
	rec.RulesVersion = rulesVersion.String
	rec.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	rec.StoredAt = time.Unix(0, storedAt).UTC()
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return nil, NewStorageError("sqlite", "unmarshal_results", err)
	}
	if err := json.Unmarshal([]byte(dec), &rec.Decision); err != nil {
		return nil, NewStorageError("sqlite", "unmarshal_decision", err)
	}
	return &rec, nil
}

// History implements Store.
func (s *SQLiteStore) History(ctx context.Context, dossierID string, limit int) ([]HistoryEntry, error) {
	query := `
		SELECT dossier_id, input_version, rules_version, outcome,
			errors, warnings, not_applicable, evaluated_at, stored_at
		FROM evaluation_history WHERE dossier_id = ? ORDER BY id DESC`
	args := []any{dossierID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "history", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h                     HistoryEntry
			version               int64
			rulesVersion          sql.NullString
			outcome               string
			evaluatedAt, storedAt int64
		)
		if err := rows.Scan(&h.DossierID, &version, &rulesVersion, &outcome,
			&h.Errors, &h.Warnings, &h.NotApplicable, &evaluatedAt, &storedAt); err != nil {
			return nil, NewStorageError("sqlite", "scan_history", err)
		}
		h.InputVersion = uint64(version)
		h.RulesVersion = rulesVersion.String
		h.Outcome = decision.Outcome(outcome)
		h.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
		h.StoredAt = time.Unix(0, storedAt).UTC()
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "history", err)
	}
	return out, nil
}

// Dossiers implements Store.
func (s *SQLiteStore) Dossiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dossier_id FROM evaluations ORDER BY dossier_id`)
	if err != nil {
		return nil, NewStorageError("sqlite", "dossiers", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, NewStorageError("sqlite", "scan_dossier", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "dossiers", err)
	}
	return out, nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_history WHERE stored_at < ?`, before.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	if n > 0 {
		s.logger.Debug("history pruned", "deleted_count", n, "before", before)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite result store closed")
	return nil
}
