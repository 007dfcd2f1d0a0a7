package related

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notes"
	"github.com/hyperjump/kioku/internal/storage"
)

// fakeEmbedder maps exact texts to vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

func (f *fakeEmbedder) Close() error { return nil }

func unitAt(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

type fixture struct {
	svc      *Service
	store    *storage.JSONStore
	repo     *notes.Repository
	embedder *fakeEmbedder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo := notes.NewRepository(filepath.Join(dir, "notes"), notes.WithClock(func() time.Time { return clock }))
	store := storage.NewJSONStore(filepath.Join(dir, "embeddings_cache.json"))
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  unitAt(0.75),
		"gamma": unitAt(0.3),
		"query": unitAt(0.9),
	}}
	opts = append([]Option{WithStorePath(store.Path())}, opts...)
	return &fixture{
		svc:      NewService(store, repo, emb, opts...),
		store:    store,
		repo:     repo,
		embedder: emb,
	}
}

func (f *fixture) create(t *testing.T, title, content string) models.Note {
	t.Helper()
	n, err := f.svc.CreateNote(context.Background(), models.NoteInput{Title: title, Content: content})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return n
}

func (f *fixture) load(t *testing.T) models.Store {
	t.Helper()
	s, err := f.store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreateNote(t *testing.T) {
	f := newFixture(t)
	n := f.create(t, "First", "alpha")
	if n.Filename != "2024-05-01T09-00-00 -- First.txt" {
		t.Errorf("filename = %q", n.Filename)
	}
	store := f.load(t)
	rec, ok := store[n.Filename]
	if !ok {
		t.Fatalf("embedding not stored: %v", store.IDs())
	}
	if !reflect.DeepEqual(rec.Vector, []float32{1, 0}) || rec.Timestamp.IsZero() {
		t.Errorf("record = %+v", rec)
	}
}

func TestCreateNote_unconfiguredProviderStoresNothing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	emb, err := embedding.New(config.EmbeddingConfig{Provider: embedding.ProviderOpenAI, CacheSize: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	repo := notes.NewRepository(filepath.Join(dir, "notes"))
	store := storage.NewJSONStore(filepath.Join(dir, "embeddings_cache.json"))
	if err := storage.Upsert(context.Background(), store, "b.txt", make([]float32, 1536)); err != nil {
		t.Fatal(err)
	}
	svc := NewService(store, repo, emb)

	n, err := svc.CreateNote(context.Background(), models.NoteInput{Title: "Offline", Content: "written without a key"})
	if !errors.Is(err, models.ErrEmbeddingProvider) {
		t.Fatalf("err = %v, want ErrEmbeddingProvider", err)
	}
	got, _ := store.Load(context.Background())
	if ids := got.IDs(); !reflect.DeepEqual(ids, []string{"b.txt"}) {
		t.Errorf("store ids = %v, want only the existing record", ids)
	}
	if _, err := svc.Related(context.Background(), n.Filename); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Related err = %v, want ErrNotFound", err)
	}
}

func TestCreateNote_generatesTitle(t *testing.T) {
	f := newFixture(t)
	n := f.create(t, "  ", "alpha")
	if n.Title != "alpha" {
		t.Errorf("title = %q, want first line of content", n.Title)
	}
}

func TestCreateNote_embeddingFailureLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "First", "alpha")
	before := f.load(t)

	f.embedder.err = errors.New("api down")
	n, err := f.svc.CreateNote(context.Background(), models.NoteInput{Title: "Second", Content: "beta"})
	if !errors.Is(err, models.ErrEmbeddingProvider) {
		t.Fatalf("err = %v, want ErrEmbeddingProvider", err)
	}
	if n.Filename == "" || !f.repo.Exists(n.Filename) {
		t.Error("note should still be written")
	}
	if after := f.load(t); !reflect.DeepEqual(after, before) {
		t.Errorf("store changed: %v", after.IDs())
	}
	if _, ok := before[first.Filename]; !ok {
		t.Error("first note should be embedded")
	}
}

func TestRelated(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "alpha")
	b := f.create(t, "B", "beta")
	f.create(t, "C", "gamma")

	rel, err := f.svc.Related(context.Background(), a.Filename)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Threshold == nil || *rel.Threshold != 0.7 || !rel.Degraded {
		t.Errorf("threshold = %v degraded = %v, want 0.7 degraded", rel.Threshold, rel.Degraded)
	}
	if len(rel.Results) != 1 || rel.Results[0].ID != b.Filename {
		t.Errorf("results = %+v", rel.Results)
	}
	if math.Abs(rel.Results[0].Score-0.75) > 1e-6 {
		t.Errorf("score = %v, want 0.75", rel.Results[0].Score)
	}
}

func TestRelated_customThresholds(t *testing.T) {
	f := newFixture(t, WithThresholds([]float64{0.2}), WithLimit(1))
	a := f.create(t, "A", "alpha")
	f.create(t, "B", "beta")
	f.create(t, "C", "gamma")

	rel, err := f.svc.Related(context.Background(), a.Filename)
	if err != nil {
		t.Fatal(err)
	}
	if len(rel.Results) != 1 || rel.Degraded {
		t.Errorf("limit 1 should keep only the best match: %+v", rel)
	}
}

func TestRelated_notFound(t *testing.T) {
	f := newFixture(t)
	f.create(t, "A", "alpha")
	if _, err := f.svc.Related(context.Background(), "missing.txt"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRelated_nothingSimilar(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "alpha")
	f.create(t, "C", "gamma")
	rel, err := f.svc.Related(context.Background(), a.Filename)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Threshold != nil || len(rel.Results) != 0 {
		t.Errorf("expected no related notes, got %+v", rel)
	}
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A", "alpha")
	b := f.create(t, "B", "beta")
	if err := os.Remove(filepath.Join(f.repo.Dir(), b.Filename)); err != nil {
		t.Fatal(err)
	}

	stale, err := f.svc.Cleanup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stale, []string{b.Filename}) {
		t.Errorf("stale = %v", stale)
	}
	if ids := f.load(t).IDs(); !reflect.DeepEqual(ids, []string{a.Filename}) {
		t.Errorf("store ids = %v", ids)
	}
	again, err := f.svc.Cleanup(context.Background())
	if err != nil || len(again) != 0 {
		t.Errorf("second cleanup = %v, %v", again, err)
	}
}

func TestReindex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := os.MkdirAll(f.repo.Dir(), 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"2024-01-01T00-00-00 -- A.txt": "alpha",
		"2024-01-02T00-00-00 -- B.txt": "beta",
	} {
		if err := os.WriteFile(filepath.Join(f.repo.Dir(), name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.svc.Reindex(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Indexed) != 2 || report.Skipped != 0 {
		t.Errorf("first reindex = %+v", report)
	}

	f.embedder.calls = 0
	report, err = f.svc.Reindex(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Indexed) != 0 || report.Skipped != 2 || f.embedder.calls != 0 {
		t.Errorf("second reindex = %+v (calls %d)", report, f.embedder.calls)
	}

	report, err = f.svc.Reindex(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Indexed) != 2 {
		t.Errorf("full reindex = %+v", report)
	}
}

func TestReindex_embeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.create(t, "A", "alpha")
	f.embedder.err = errors.New("quota")
	if _, err := f.svc.Reindex(context.Background(), true); !errors.Is(err, models.ErrEmbeddingProvider) {
		t.Errorf("err = %v, want ErrEmbeddingProvider", err)
	}
}

func TestIndexNoteAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A", "alpha")

	if err := os.WriteFile(filepath.Join(f.repo.Dir(), a.Filename), []byte("beta"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.IndexNote(ctx, a.Filename); err != nil {
		t.Fatal(err)
	}
	if got := f.load(t)[a.Filename].Vector; !reflect.DeepEqual(got, unitAt(0.75)) {
		t.Errorf("vector after update = %v", got)
	}
	if err := f.svc.IndexNote(ctx, "missing.txt"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("IndexNote(missing) = %v", err)
	}

	if err := f.svc.Remove(ctx, a.Filename); err != nil {
		t.Fatal(err)
	}
	if len(f.load(t)) != 0 {
		t.Error("embedding should be removed")
	}
}

func TestSearch(t *testing.T) {
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	f := newFixture(t, WithKeywordIndex(idx))
	ctx := context.Background()
	a := f.create(t, "A", "alpha")
	b := f.create(t, "B", "beta")

	sem, err := f.svc.Search(ctx, "query", true, 5)
	if err != nil {
		t.Fatal(err)
	}
	// query is closer to beta (about 0.96) than to alpha (0.9).
	if len(sem) != 2 || sem[0].ID != b.Filename || sem[1].ID != a.Filename {
		t.Errorf("semantic results = %+v", sem)
	}

	kw, err := f.svc.Search(ctx, "beta", false, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kw) != 1 || kw[0].ID != b.Filename {
		t.Errorf("keyword results = %+v", kw)
	}

	if _, err := f.svc.Search(ctx, "  ", true, 5); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestSearch_keywordWithoutIndex(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Search(context.Background(), "alpha", false, 5); err == nil {
		t.Error("expected error without keyword index")
	}
}

func TestSyncKeywordIndex(t *testing.T) {
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	f := newFixture(t)
	f.create(t, "A", "alpha")
	f.create(t, "B", "beta")

	svc := NewService(f.store, f.repo, f.embedder, WithKeywordIndex(idx))
	n, err := svc.SyncKeywordIndex(context.Background())
	if err != nil || n != 2 {
		t.Errorf("SyncKeywordIndex = %d, %v", n, err)
	}
	if count, _ := idx.DocCount(); count != 2 {
		t.Errorf("DocCount = %d", count)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "A", "alpha")
	b := f.create(t, "B", "beta")
	if err := os.Remove(filepath.Join(f.repo.Dir(), b.Filename)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.repo.Dir(), "2024-06-01T00-00-00 -- New.txt"), []byte("gamma"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := f.svc.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Notes != 2 || st.Embeddings != 2 {
		t.Errorf("counts = %d notes, %d embeddings", st.Notes, st.Embeddings)
	}
	if !reflect.DeepEqual(st.Stale, []string{b.Filename}) {
		t.Errorf("stale = %v", st.Stale)
	}
	if !reflect.DeepEqual(st.Missing, []string{"2024-06-01T00-00-00 -- New.txt"}) {
		t.Errorf("missing = %v", st.Missing)
	}
	if st.StoreBytes == 0 || st.NotesBytes == 0 {
		t.Errorf("disk usage = %d/%d", st.StoreBytes, st.NotesBytes)
	}
}

func TestHybridSearch(t *testing.T) {
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	f := newFixture(t, WithKeywordIndex(idx))
	ctx := context.Background()
	a := f.create(t, "A", "alpha")
	b := f.create(t, "B", "beta")

	// "alpha" matches A by keyword and (cosine 1) semantically; B only semantically.
	results, err := f.svc.HybridSearch(ctx, "alpha", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != a.Filename || results[1].ID != b.Filename {
		t.Fatalf("results = %+v", results)
	}
	if results[0].KeywordScore != 1 || math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("top result = %+v", results[0])
	}
	if results[1].KeywordScore != 0 || math.Abs(results[1].SemanticScore-0.75) > 1e-6 {
		t.Errorf("second result = %+v", results[1])
	}

	limited, _ := f.svc.HybridSearch(ctx, "alpha", 1)
	if len(limited) != 1 {
		t.Errorf("limit 1 gave %d results", len(limited))
	}
	if _, err := newFixture(t).svc.HybridSearch(ctx, "alpha", 5); err == nil {
		t.Error("expected error without keyword index")
	}
}
