package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kioku/internal/models"
)

func TestJSONStore_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_cache.json")
	s := NewJSONStore(path)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
	want := models.Store{
		"2024-05-01T12-30-00 -- a.txt": {Vector: []float32{0.1, -0.2, 0.3}, Timestamp: ts},
		"2024-05-02T08-00-00 -- b.txt": {Vector: []float32{}, Timestamp: ts},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"2024-05-01T12-30-00 -- a.txt\": {") {
		t.Errorf("expected two-space indented output, got:\n%s", data)
	}
	if !strings.Contains(string(data), `"timestamp": "2024-05-01T12:30:00.123Z"`) {
		t.Errorf("expected RFC 3339 timestamp, got:\n%s", data)
	}
}

func TestJSONStore_missingFile(t *testing.T) {
	s := NewJSONStore(filepath.Join(t.TempDir(), "nope.json"))
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty store, got %v", got)
	}
}

func TestJSONStore_unreadableOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		setup func(path string) error
	}{
		{"corrupt json", func(p string) error { return os.WriteFile(p, []byte("{not json"), 0644) }},
		{"json array", func(p string) error { return os.WriteFile(p, []byte("[1,2]"), 0644) }},
		{"empty file", func(p string) error { return os.WriteFile(p, nil, 0644) }},
		{"directory", func(p string) error { return os.Mkdir(p, 0755) }},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "store"+string(rune('a'+i)))
			if err := tt.setup(path); err != nil {
				t.Fatal(err)
			}
			got, err := NewJSONStore(path).Load(context.Background())
			if err != nil {
				t.Fatalf("load should absorb errors, got %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty store, got %v", got)
			}
		})
	}
}

func TestJSONStore_skipsMalformedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	content := `{
  "good.txt": {"vector": [1, 0], "timestamp": "2024-01-01T00:00:00Z", "extra": true},
  "no-ts.txt": {"vector": [0, 1]},
  "no-vector.txt": {"timestamp": "2024-01-01T00:00:00Z"},
  "null-vector.txt": {"vector": null},
  "bad-vector.txt": {"vector": "abc"},
  "bad-ts.txt": {"vector": [1], "timestamp": "yesterday"},
  "not-object.txt": 42
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := NewJSONStore(path).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"good.txt", "no-ts.txt"}; !reflect.DeepEqual(got.IDs(), want) {
		t.Errorf("ids = %v, want %v", got.IDs(), want)
	}
	if !got["no-ts.txt"].Timestamp.IsZero() {
		t.Error("missing timestamp should load as zero time")
	}
}

func TestJSONStore_saveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewJSONStore(filepath.Join(blocker, "store.json"))
	err := s.Save(context.Background(), models.Store{"a": {Vector: []float32{1}}})
	if !errors.Is(err, models.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestJSONStore_saveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStore(filepath.Join(dir, "store.json"))
	for i := 0; i < 3; i++ {
		if err := Upsert(context.Background(), s, "a", []float32{float32(i)}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "store.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("unexpected directory contents %v", names)
	}
}

func TestJSONStore_canceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewJSONStore(filepath.Join(t.TempDir(), "store.json"))
	if _, err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Load: expected context.Canceled, got %v", err)
	}
	if err := s.Save(ctx, models.Store{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Save: expected context.Canceled, got %v", err)
	}
}
