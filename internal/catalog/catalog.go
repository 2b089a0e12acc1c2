// Package catalog persists every processing outcome in SQLite so operators
// can query history beyond the in-memory status window. Counters are never
// rebuilt from it.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"hopper/internal/ledger"
	"hopper/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another schema version.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

// Record is one stored outcome.
type Record struct {
	ID          int64
	BatchID     string
	File        string
	Outcome     ledger.Outcome
	Reason      string
	Checksum    string
	Size        int64
	ProcessedAt time.Time
}

// Store is the SQLite-backed catalog.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the catalog database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "catalog")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Insert stores entry.
func (s *Store) Insert(ctx context.Context, entry ledger.Entry) error {
	processedAt := entry.Time
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (batch_id, file_name, outcome, reason, checksum, size_bytes, processed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableString(entry.BatchID),
		entry.File,
		entry.Outcome.String(),
		nullableString(entry.Reason),
		nullableString(entry.Checksum),
		entry.Size,
		processedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Append implements ledger.Sink. Failures are logged; the catalog is
// best-effort history.
func (s *Store) Append(entry ledger.Entry) {
	if err := s.Insert(context.Background(), entry); err != nil {
		logging.WarnWithContext(s.logger, "catalog insert failed; outcome missing from catalog", "catalog_insert_failed",
			logging.String(logging.FieldFile, entry.File),
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalog history is incomplete"),
			logging.String(logging.FieldErrorHint, "check the catalog database file and free space"),
		)
	}
}

// Recent returns up to limit records, newest first. A limit <= 0 returns 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, file_name, outcome, reason, checksum, size_bytes, processed_at
         FROM outcomes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats returns the number of stored outcomes per kind.
func (s *Store) Stats(ctx context.Context) (map[ledger.Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM outcomes GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("catalog stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[ledger.Outcome]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		if outcome, ok := ledger.ParseOutcome(name); ok {
			stats[outcome] = count
		}
	}
	return stats, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec         Record
		batchID     sql.NullString
		outcome     string
		reason      sql.NullString
		sum         sql.NullString
		processedAt string
	)
	if err := rows.Scan(&rec.ID, &batchID, &rec.File, &outcome, &reason, &sum, &rec.Size, &processedAt); err != nil {
		return Record{}, fmt.Errorf("scan outcome: %w", err)
	}
	parsed, ok := ledger.ParseOutcome(outcome)
	if !ok {
		return Record{}, fmt.Errorf("unknown outcome %q in row %d", outcome, rec.ID)
	}
	rec.Outcome = parsed
	rec.BatchID = batchID.String
	rec.Reason = reason.String
	rec.Checksum = sum.String
	if ts, err := time.Parse(time.RFC3339Nano, processedAt); err == nil {
		rec.ProcessedAt = ts
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
