package related

import (
	"context"

	"github.com/hyperjump/kioku/internal/cache"
	"github.com/hyperjump/kioku/internal/storage"
)

// Status describes how well the embedding store matches the notes on disk.
type Status struct {
	NotesDir   string   `json:"notes_dir"`
	StorePath  string   `json:"store_path,omitempty"`
	Notes      int      `json:"notes"`
	Embeddings int      `json:"embeddings"`
	Dimensions int      `json:"dimensions"`
	Stale      []string `json:"stale"`
	Missing    []string `json:"missing"`
	StoreBytes int64    `json:"store_bytes"`
	NotesBytes int64    `json:"notes_bytes"`
}

// Status reports counts, stale entries, notes without embeddings and disk usage.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	ids, err := s.notes.IDs()
	if err != nil {
		return nil, err
	}
	store, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	existing := cache.NewIDSet(ids...)
	st := &Status{
		NotesDir:   s.notes.Dir(),
		StorePath:  s.storePath,
		Notes:      len(ids),
		Embeddings: len(store),
		Dimensions: s.embedder.Dimensions(),
		Stale:      cache.Stale(store, existing),
		Missing:    cache.Missing(store, existing),
	}
	if st.Stale == nil {
		st.Stale = []string{}
	}
	if st.Missing == nil {
		st.Missing = []string{}
	}
	if st.StoreBytes, err = storage.DiskUsageBytes(s.storePath); err != nil {
		return nil, err
	}
	if st.NotesBytes, err = storage.DiskUsageBytes(s.notes.Dir()); err != nil {
		return nil, err
	}
	return st, nil
}
