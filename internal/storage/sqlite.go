package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/internal/models"
	"go.uber.org/zap"
)

// SQLiteStore keeps the mapping in a single SQLite table. Vectors are stored as JSON arrays.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: o.logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		vector TEXT NOT NULL,
		timestamp TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Load reads every row. A query failure yields an empty store; rows that fail to decode are skipped.
func (s *SQLiteStore) Load(ctx context.Context) (models.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store := make(models.Store)
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, timestamp FROM embeddings ORDER BY id`)
	if err != nil {
		s.logger.Warn("embedding table unreadable, starting empty",
			zap.Error(fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)))
		return store, nil
	}
	defer rows.Close()

	for rows.Next() {
		var id, vecJSON, ts string
		if err := rows.Scan(&id, &vecJSON, &ts); err != nil {
			s.logger.Warn("skipping unreadable embedding row", zap.Error(err))
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil || vec == nil {
			s.logger.Warn("skipping malformed embedding row", zap.String("id", id), zap.Error(err))
			continue
		}
		parsed, err := parseTimestamp(ts)
		if err != nil {
			s.logger.Warn("skipping malformed embedding row", zap.String("id", id), zap.Error(err))
			continue
		}
		store[id] = models.EmbeddingRecord{Vector: vec, Timestamp: parsed}
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("embedding table read interrupted, starting empty",
			zap.Error(fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)))
		return make(models.Store), nil
	}
	return store, nil
}

// Save replaces the table contents with store inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, store models.Store) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", models.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("%w: clear: %v", models.ErrStoreUnavailable, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (id, vector, timestamp) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", models.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, id := range store.IDs() {
		rec := store[id]
		vec := rec.Vector
		if vec == nil {
			vec = []float32{}
		}
		vecJSON, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("%w: marshal %q: %v", models.ErrStoreUnavailable, id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(vecJSON), formatTimestamp(rec.Timestamp)); err != nil {
			return fmt.Errorf("%w: insert %q: %v", models.ErrStoreUnavailable, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
