// Package storage persists note embeddings as a flat note ID -> record mapping.
//
// Every operation loads the whole mapping, changes it, and saves it back. Nothing is
// cached between calls, so each call sees the latest persisted state. Load never fails
// because the backing resource is missing or unreadable; it returns an empty store.
// Save failures are returned wrapped in models.ErrStoreUnavailable.
//
// The load-modify-save cycle is not transactional across processes: two processes
// upserting at the same time can lose one of the updates.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kioku/internal/models"
	"go.uber.org/zap"
)

// VectorStore loads and saves the complete embedding mapping.
type VectorStore interface {
	// Load returns the persisted mapping, or an empty one when nothing readable is persisted.
	Load(ctx context.Context) (models.Store, error)
	// Save replaces the persisted mapping with store.
	Save(ctx context.Context, store models.Store) error
	Close() error
}

// Driver names accepted by New.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Option configures a store.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets a logger for warnings about unreadable or malformed data.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// New opens the store for driver at path. An empty driver means DriverJSON.
func New(driver, path string, opts ...Option) (VectorStore, error) {
	switch driver {
	case DriverJSON, "":
		if path == "" {
			return nil, fmt.Errorf("json store path is required")
		}
		return NewJSONStore(path, opts...), nil
	case DriverSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		return NewSQLiteStore(path, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: json, sqlite)", driver)
	}
}

// Upsert stores vector under id with the current time, replacing any previous record.
// It performs a full load and save.
func Upsert(ctx context.Context, vs VectorStore, id string, vector []float32) error {
	return UpsertBatch(ctx, vs, map[string][]float32{id: vector})
}

// UpsertBatch stores several vectors with a single load and save.
func UpsertBatch(ctx context.Context, vs VectorStore, vectors map[string][]float32) error {
	for id := range vectors {
		if id == "" {
			return fmt.Errorf("upsert: empty note id")
		}
	}
	store, err := vs.Load(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for id, vec := range vectors {
		store[id] = models.EmbeddingRecord{Vector: vec, Timestamp: now}
	}
	return vs.Save(ctx, store)
}

// Delete removes ids from the store with a single load and save.
// Unknown ids are ignored; nothing is written when none of them is present.
func Delete(ctx context.Context, vs VectorStore, ids ...string) error {
	store, err := vs.Load(ctx)
	if err != nil {
		return err
	}
	changed := false
	for _, id := range ids {
		if _, ok := store[id]; ok {
			delete(store, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return vs.Save(ctx, store)
}
