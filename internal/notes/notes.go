// Package notes manages the note collection: one plain-text file per note, named
// "<YYYY-MM-DDTHH-MM-SS> -- <title>.txt". The filename is the note's ID.
package notes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/models"
)

const (
	// TimestampLayout formats the UTC creation time at the start of a filename.
	TimestampLayout = "2006-01-02T15-04-05"
	// Separator divides timestamp and title in a filename.
	Separator = " -- "
	// DefaultExtension is the note file extension.
	DefaultExtension = ".txt"

	maxTitleRunes = 100
)

// Repository reads and writes notes in a single directory.
type Repository struct {
	dir    string
	ext    string
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithExtension sets the note file extension (default ".txt").
func WithExtension(ext string) Option {
	return func(r *Repository) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.ext = ext
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithClock sets the time source used for new note filenames.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository returns a repository for notes in dir. The directory is created on the first Create.
func NewRepository(dir string, opts ...Option) *Repository {
	r := &Repository{dir: dir, ext: DefaultExtension, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Dir returns the notes directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Extension returns the note file extension.
func (r *Repository) Extension() string {
	return r.ext
}

// IsNote reports whether name looks like a note file of this repository.
func (r *Repository) IsNote(name string) bool {
	return strings.HasSuffix(name, r.ext) && len(name) > len(r.ext) &&
		!strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
}

// ParseFilename splits a note filename into its timestamp and title. A name without
// the separator is all timestamp and has an empty title. CreatedAt is zero when the
// timestamp does not parse.
func ParseFilename(name, ext string) models.Note {
	stem := strings.TrimSuffix(name, ext)
	ts, title, _ := strings.Cut(stem, Separator)
	n := models.Note{Filename: name, Title: title, Timestamp: ts}
	if t, err := time.ParseInLocation(TimestampLayout, ts, time.UTC); err == nil {
		n.CreatedAt = t
	}
	return n
}

// FormatFilename builds the filename for a note created at t with the given title.
// The title must already be sanitized.
func FormatFilename(t time.Time, title, ext string) string {
	return t.UTC().Format(TimestampLayout) + Separator + title + ext
}

// SanitizeTitle makes title safe for use in a filename: path separators and characters
// reserved on common filesystems become '-', whitespace is collapsed, and the result is
// trimmed and capped at 100 characters. An empty result becomes "untitled-<id>".
func SanitizeTitle(title string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		case unicode.IsControl(r):
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
		lastSpace = false
	}
	out := []rune(b.String())
	if len(out) > maxTitleRunes {
		out = out[:maxTitleRunes]
	}
	s := strings.Trim(string(out), " .")
	if s == "" {
		return "untitled-" + uuid.NewString()[:8]
	}
	return s
}

func (r *Repository) path(id string) (string, error) {
	if !r.IsNote(id) || id != filepath.Base(id) {
		return "", fmt.Errorf("%w: invalid note id %q", models.ErrNotFound, id)
	}
	return filepath.Join(r.dir, id), nil
}

// IDs returns the filenames of all notes, sorted. A missing directory has no notes.
func (r *Repository) IDs() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read notes directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !r.IsNote(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// List returns all notes without content, newest first.
func (r *Repository) List() ([]models.Note, error) {
	ids, err := r.IDs()
	if err != nil {
		return nil, err
	}
	list := make([]models.Note, 0, len(ids))
	for _, id := range ids {
		n := ParseFilename(id, r.ext)
		if n.CreatedAt.IsZero() {
			if info, err := os.Stat(filepath.Join(r.dir, id)); err == nil {
				n.CreatedAt = info.ModTime().UTC()
			}
		}
		list = append(list, n)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})
	return list, nil
}

// Get reads the note with the given ID.
func (r *Repository) Get(id string) (models.Note, error) {
	p, err := r.path(id)
	if err != nil {
		return models.Note{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Note{}, fmt.Errorf("%w: note %q", models.ErrNotFound, id)
		}
		return models.Note{}, fmt.Errorf("failed to read note: %w", err)
	}
	n := ParseFilename(id, r.ext)
	n.Content = string(data)
	if n.CreatedAt.IsZero() {
		if info, err := os.Stat(p); err == nil {
			n.CreatedAt = info.ModTime().UTC()
		}
	}
	return n, nil
}

// Exists reports whether a note with the given ID exists.
func (r *Repository) Exists(id string) bool {
	p, err := r.path(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Resolve turns a 1-based position in List order or a filename into a note ID.
func (r *Repository) Resolve(ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		list, err := r.List()
		if err != nil {
			return "", err
		}
		if n < 1 || n > len(list) {
			return "", fmt.Errorf("%w: no note number %d (have %d)", models.ErrNotFound, n, len(list))
		}
		return list[n-1].Filename, nil
	}
	id := ref
	if !strings.HasSuffix(id, r.ext) {
		id += r.ext
	}
	if !r.Exists(id) {
		return "", fmt.Errorf("%w: note %q", models.ErrNotFound, ref)
	}
	return id, nil
}

// Create writes a new note and returns it. The title is sanitized; when a note with
// the same filename already exists a numeric suffix is added to the title.
func (r *Repository) Create(title, content string) (models.Note, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return models.Note{}, fmt.Errorf("failed to create notes directory: %w", err)
	}
	title = SanitizeTitle(title)
	now := r.now().UTC().Truncate(time.Second)

	for i := 1; i <= 100; i++ {
		t := title
		if i > 1 {
			t = fmt.Sprintf("%s (%d)", title, i)
		}
		name := FormatFilename(now, t, r.ext)
		f, err := os.OpenFile(filepath.Join(r.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return models.Note{}, fmt.Errorf("failed to create note: %w", err)
		}
		if _, err := f.WriteString(content); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return models.Note{}, fmt.Errorf("failed to write note: %w", err)
		}
		if err := f.Close(); err != nil {
			return models.Note{}, fmt.Errorf("failed to write note: %w", err)
		}
		r.logger.Debug("created note", zap.String("id", name))
		n := ParseFilename(name, r.ext)
		n.Content = content
		return n, nil
	}
	return models.Note{}, fmt.Errorf("failed to create note: too many notes named %q at %s", title, now.Format(TimestampLayout))
}
