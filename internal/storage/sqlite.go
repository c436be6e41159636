package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/exilemind/buildsearch/internal/models"
)

// SQLiteBuildStore implements BuildStore using SQLite. Records are stored as a
// JSON document keyed by similarity hash, with a few promoted columns for listing.
type SQLiteBuildStore struct {
	db *sql.DB
}

// NewSQLiteBuildStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteBuildStore(dbPath string) (*SQLiteBuildStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteBuildStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		hash TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		main_skill TEXT NOT NULL,
		record TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_builds_class ON builds(class);
	CREATE INDEX IF NOT EXISTS idx_builds_main_skill ON builds(main_skill);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertRecords inserts or replaces records in one transaction.
func (s *SQLiteBuildStore) UpsertRecords(ctx context.Context, records []*models.BuildRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO builds (hash, class, main_skill, record, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			class = excluded.class,
			main_skill = excluded.main_skill,
			record = excluded.record,
			updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal record %s: %w", r.Hash(), err)
		}
		if _, err := stmt.ExecContext(ctx, r.Hash(), r.Class, r.MainSkill, string(data), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert record %s: %w", r.Hash(), err)
		}
	}
	return tx.Commit()
}

// GetRecord returns the record with the given similarity hash.
func (s *SQLiteBuildStore) GetRecord(ctx context.Context, hash string) (*models.BuildRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT record FROM builds WHERE hash = ?", hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record not found: %s", hash)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", hash, err)
	}
	return unmarshalRecord(data)
}

// ListRecords returns records ordered by hash with offset/limit paging.
func (s *SQLiteBuildStore) ListRecords(ctx context.Context, offset, limit int) ([]*models.BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record FROM builds ORDER BY hash LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// AllRecords returns every stored record, ordered by hash. Used for full rebuilds.
func (s *SQLiteBuildStore) AllRecords(ctx context.Context) ([]*models.BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM builds ORDER BY hash")
	if err != nil {
		return nil, fmt.Errorf("all records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteRecord removes the record with the given hash.
func (s *SQLiteBuildStore) DeleteRecord(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM builds WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("delete record %s: %w", hash, err)
	}
	return nil
}

// CountRecords returns the number of stored records.
func (s *SQLiteBuildStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM builds").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteBuildStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]*models.BuildRecord, error) {
	var records []*models.BuildRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func unmarshalRecord(data string) (*models.BuildRecord, error) {
	var r models.BuildRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &r, nil
}
