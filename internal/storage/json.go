package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/kioku/internal/models"
	"go.uber.org/zap"
)

// JSONStore keeps the mapping in a single JSON file:
//
//	{"<note id>": {"vector": [...], "timestamp": "<RFC 3339>"}}
//
// Unknown fields in a record are ignored. Save writes a temp file next to the target
// and renames it into place, so an interrupted save leaves the previous file intact.
type JSONStore struct {
	path   string
	logger *zap.Logger
}

// NewJSONStore returns a store backed by the JSON file at path. The file need not exist.
func NewJSONStore(path string, opts ...Option) *JSONStore {
	o := buildOptions(opts)
	return &JSONStore{path: path, logger: o.logger}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

type recordJSON struct {
	Vector    *[]float32 `json:"vector"`
	Timestamp string     `json:"timestamp"`
}

// Load reads the file. A missing, unreadable, or corrupt file yields an empty store;
// individual malformed records are skipped.
func (s *JSONStore) Load(ctx context.Context) (models.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store := make(models.Store)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("embedding store unreadable, starting empty",
				zap.String("path", s.path), zap.Error(fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)))
		}
		return store, nil
	}
	if len(data) == 0 {
		return store, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("embedding store corrupt, starting empty",
			zap.String("path", s.path), zap.Error(fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)))
		return store, nil
	}
	for id, msg := range raw {
		rec, err := decodeRecord(id, msg)
		if err != nil {
			s.logger.Warn("skipping malformed embedding record", zap.String("id", id), zap.Error(err))
			continue
		}
		store[id] = rec
	}
	return store, nil
}

func decodeRecord(id string, msg json.RawMessage) (models.EmbeddingRecord, error) {
	if id == "" {
		return models.EmbeddingRecord{}, fmt.Errorf("empty note id")
	}
	var r recordJSON
	if err := json.Unmarshal(msg, &r); err != nil {
		return models.EmbeddingRecord{}, fmt.Errorf("decode record: %w", err)
	}
	if r.Vector == nil {
		return models.EmbeddingRecord{}, fmt.Errorf("record has no vector")
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return models.EmbeddingRecord{}, err
	}
	return models.EmbeddingRecord{Vector: *r.Vector, Timestamp: ts}, nil
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds. An empty string is the zero time.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

type recordOut struct {
	Vector    []float32 `json:"vector"`
	Timestamp string    `json:"timestamp"`
}

// Save replaces the file contents with store.
func (s *JSONStore) Save(ctx context.Context, store models.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := make(map[string]recordOut, len(store))
	for id, rec := range store {
		vec := rec.Vector
		if vec == nil {
			vec = []float32{}
		}
		out[id] = recordOut{Vector: vec, Timestamp: formatTimestamp(rec.Timestamp)}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", models.ErrStoreUnavailable, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Close is a no-op for JSONStore.
func (s *JSONStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
