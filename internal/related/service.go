// Package related ties the note collection, the embedding provider and the embedding
// store together: it embeds notes as they are written, answers related-note and
// search queries, and keeps the store in sync with the notes on disk.
package related

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/cache"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notes"
	"github.com/hyperjump/kioku/internal/ranking"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/titles"
	"github.com/hyperjump/kioku/internal/vector"
)

const (
	// reindexBatchSize is how many notes are embedded per store save during Reindex.
	reindexBatchSize = 32
	// hybridCandidates is the minimum number of candidates taken from each source before fusing.
	hybridCandidates = 20
)

// Service orchestrates note creation, embedding, related-note lookup and maintenance.
// Store mutations are serialized within the process.
type Service struct {
	store      storage.VectorStore
	notes      *notes.Repository
	embedder   embedding.Embedder
	titles     titles.Generator
	keyword    keyword.KeywordIndex
	limit      int
	thresholds []float64
	storePath  string
	logger     *zap.Logger

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for debug output (note embedded, entries pruned, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTitleGenerator sets the generator used when a new note has no title.
func WithTitleGenerator(g titles.Generator) Option {
	return func(s *Service) { s.titles = g }
}

// WithKeywordIndex enables keyword search and keeps idx updated as notes change.
func WithKeywordIndex(idx keyword.KeywordIndex) Option {
	return func(s *Service) { s.keyword = idx }
}

// WithLimit sets how many ranked candidates a related-note lookup considers.
func WithLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// WithThresholds sets the descending similarity thresholds for related notes.
func WithThresholds(t []float64) Option {
	return func(s *Service) { s.thresholds = append([]float64(nil), t...) }
}

// WithStorePath sets the store location reported by Status.
func WithStorePath(path string) Option {
	return func(s *Service) { s.storePath = path }
}

// NewService creates a service over the given store, notes and embedder.
func NewService(store storage.VectorStore, repo *notes.Repository, embedder embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		store:      store,
		notes:      repo,
		embedder:   embedder,
		titles:     titles.FirstLine{},
		limit:      vector.DefaultRankLimit,
		thresholds: ranking.DefaultThresholds,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Notes returns the note repository.
func (s *Service) Notes() *notes.Repository {
	return s.notes
}

// embeddingText is the text embedded for a note: its content with whitespace collapsed,
// or the title when the note has no content.
func embeddingText(n models.Note) string {
	text := collapseSpace(n.Content)
	if text == "" {
		text = collapseSpace(n.Title)
	}
	return text
}

func collapseSpace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

func (s *Service) embed(ctx context.Context, id, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %q: %w", models.ErrEmbeddingProvider, id, err)
	}
	return vec, nil
}

// SuggestTitle returns a title for content from the configured generator.
func (s *Service) SuggestTitle(ctx context.Context, content string) (string, error) {
	return s.titles.Generate(ctx, content)
}

// CreateNote writes a new note and stores its embedding. An empty title is generated
// from the content. When embedding fails the note is still written and returned
// together with an error wrapping models.ErrEmbeddingProvider.
func (s *Service) CreateNote(ctx context.Context, input models.NoteInput) (models.Note, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		t, err := s.titles.Generate(ctx, input.Content)
		if err != nil {
			return models.Note{}, fmt.Errorf("failed to generate title: %w", err)
		}
		title = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note, err := s.notes.Create(title, input.Content)
	if err != nil {
		return models.Note{}, err
	}
	s.logger.Debug("note created", zap.String("id", note.Filename))
	if err := s.indexLocked(ctx, note); err != nil {
		return note, err
	}
	return note, nil
}

// IndexNote (re)computes and stores the embedding for an existing note.
func (s *Service) IndexNote(ctx context.Context, id string) error {
	note, err := s.notes.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(ctx, note)
}

func (s *Service) indexLocked(ctx context.Context, note models.Note) error {
	vec, err := s.embed(ctx, note.Filename, embeddingText(note))
	if err != nil {
		return err
	}
	if err := storage.Upsert(ctx, s.store, note.Filename, vec); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	if s.keyword != nil {
		if err := s.keyword.Index(ctx, note); err != nil {
			s.logger.Warn("keyword index update failed", zap.String("id", note.Filename), zap.Error(err))
		}
	}
	s.logger.Debug("note embedded", zap.String("id", note.Filename), zap.Int("dimensions", len(vec)))
	return nil
}

// Remove deletes the embedding (and keyword entry) of a note that no longer exists.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := storage.Delete(ctx, s.store, id); err != nil {
		return fmt.Errorf("failed to remove embedding: %w", err)
	}
	if s.keyword != nil {
		if err := s.keyword.Delete(ctx, id); err != nil {
			s.logger.Warn("keyword index delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	s.logger.Debug("embedding removed", zap.String("id", id))
	return nil
}

// Related returns the notes related to id under the adaptive threshold policy. It
// returns an error wrapping models.ErrNotFound when id has no stored embedding.
func (s *Service) Related(ctx context.Context, id string) (*models.RelatedNotes, error) {
	store, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ranked, err := vector.RankSimilar(id, store, s.limit)
	if err != nil {
		return nil, err
	}
	return ranking.SelectRelevant(ranked, s.thresholds).Related(id), nil
}

// Cleanup removes embeddings of notes that no longer exist and returns their IDs.
// Nothing is written when there is nothing to remove.
func (s *Service) Cleanup(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.notes.IDs()
	if err != nil {
		return nil, err
	}
	existing := cache.NewIDSet(ids...)
	store, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	stale := cache.Stale(store, existing)
	if len(stale) == 0 {
		return nil, nil
	}
	if err := s.store.Save(ctx, cache.Prune(store, existing)); err != nil {
		return nil, err
	}
	if s.keyword != nil {
		for _, id := range stale {
			_ = s.keyword.Delete(ctx, id)
		}
	}
	s.logger.Info("pruned stale embeddings", zap.Int("count", len(stale)))
	return stale, nil
}

// ReindexReport summarizes a Reindex run.
type ReindexReport struct {
	Indexed []string `json:"indexed"`
	Skipped int      `json:"skipped"`
}

// Reindex embeds notes that have no stored embedding, or every note when all is true.
// Embeddings are saved in batches, so an embedding failure keeps the batches already
// saved and returns the report so far with an error wrapping models.ErrEmbeddingProvider.
func (s *Service) Reindex(ctx context.Context, all bool) (ReindexReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report ReindexReport
	ids, err := s.notes.IDs()
	if err != nil {
		return report, err
	}
	targets := ids
	if !all {
		store, err := s.store.Load(ctx)
		if err != nil {
			return report, err
		}
		targets = cache.Missing(store, cache.NewIDSet(ids...))
	}
	report.Skipped = len(ids) - len(targets)

	for start := 0; start < len(targets); start += reindexBatchSize {
		end := min(start+reindexBatchSize, len(targets))
		batch := make(map[string][]float32, end-start)
		var batchNotes []models.Note
		for _, id := range targets[start:end] {
			note, err := s.notes.Get(id)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				return report, err
			}
			vec, err := s.embed(ctx, id, embeddingText(note))
			if err != nil {
				return report, err
			}
			batch[id] = vec
			batchNotes = append(batchNotes, note)
		}
		if len(batch) == 0 {
			continue
		}
		if err := storage.UpsertBatch(ctx, s.store, batch); err != nil {
			return report, fmt.Errorf("failed to store embeddings: %w", err)
		}
		for _, n := range batchNotes {
			report.Indexed = append(report.Indexed, n.Filename)
			if s.keyword != nil {
				_ = s.keyword.Index(ctx, n)
			}
		}
		s.logger.Debug("reindexed batch", zap.Int("count", len(batch)))
	}
	return report, nil
}

// SyncKeywordIndex indexes every note for keyword search.
func (s *Service) SyncKeywordIndex(ctx context.Context) (int, error) {
	if s.keyword == nil {
		return 0, fmt.Errorf("keyword index not configured")
	}
	ids, err := s.notes.IDs()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		note, err := s.notes.Get(id)
		if err != nil {
			s.logger.Warn("skipping unreadable note", zap.String("id", id), zap.Error(err))
			continue
		}
		if err := s.keyword.Index(ctx, note); err != nil {
			return n, fmt.Errorf("failed to index %q: %w", id, err)
		}
		n++
	}
	return n, nil
}

// Search finds notes matching query. Semantic search ranks stored embeddings by cosine
// similarity to the embedded query; keyword search needs a keyword index.
func (s *Service) Search(ctx context.Context, query string, semantic bool, limit int) ([]models.SimilarityResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = vector.DefaultRankLimit
	}
	if !semantic {
		if s.keyword == nil {
			return nil, fmt.Errorf("keyword index not configured")
		}
		return s.keyword.Search(ctx, query, limit, &keyword.SearchOptions{TitleBoost: 3, Fuzziness: 1})
	}
	q, err := embedding.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", models.ErrEmbeddingProvider, err)
	}
	store, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return vector.RankVector(q, store, "", limit)
}

// HybridSearch ranks notes by a weighted blend of normalized keyword scores and cosine
// similarity to the embedded query. It needs a keyword index.
func (s *Service) HybridSearch(ctx context.Context, query string, limit int) ([]search.FusedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if s.keyword == nil {
		return nil, fmt.Errorf("keyword index not configured")
	}
	if limit <= 0 {
		limit = vector.DefaultRankLimit
	}
	candidates := max(limit*4, hybridCandidates)

	kw, err := s.keyword.Search(ctx, query, candidates, &keyword.SearchOptions{TitleBoost: 3, Fuzziness: 1})
	if err != nil {
		return nil, err
	}
	sem, err := s.Search(ctx, query, true, candidates)
	if err != nil {
		return nil, err
	}
	fused := search.Fuse(search.NormalizeKeywordScores(kw), search.SemanticScores(sem), search.DefaultWeights)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}
