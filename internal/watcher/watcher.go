// Package watcher keeps embeddings current by watching the notes directory with fsnotify.
// Writes are debounced per file; removed or renamed notes are dropped from the store.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/models"
)

const defaultDebounce = 500 * time.Millisecond

// Handler receives note changes. IDs are note filenames relative to the watched directory.
type Handler interface {
	IndexNote(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Watcher watches one notes directory and forwards note changes to a Handler.
type Watcher struct {
	dir      string
	ext      string
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	done    chan struct{}
	started bool
	stop    sync.Once
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output (file events, indexing failures).
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a note must stay quiet before it is re-embedded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for notes with extension ext (e.g. ".txt") in dir.
func New(dir, ext string, h Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      filepath.Clean(dir),
		ext:      ext,
		handler:  h,
		debounce: defaultDebounce,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start begins watching. The directory is created if missing. Events are handled until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.started = true
	w.logger.Debug("watcher starting", zap.String("dir", w.dir), zap.String("extension", w.ext), zap.Duration("debounce", w.debounce))

	w.wg.Add(1)
	go w.run(ctx, fsw.Events, fsw.Errors)
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			go w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	id, ok := w.noteID(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("id", id))

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(id)
		w.remove(ctx, id)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ctx, id)
	}
}

// noteID maps an event path to a note ID. Only direct children with the note extension
// count; hidden files (editor swap files and the like) are ignored.
func (w *Watcher) noteID(path string) (string, bool) {
	if filepath.Clean(filepath.Dir(path)) != w.dir {
		return "", false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), w.ext) {
		return "", false
	}
	return name, true
}

func (w *Watcher) schedule(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[id]; ok {
		t.Stop()
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		w.index(ctx, id)
	})
}

func (w *Watcher) cancel(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[id]; ok {
		t.Stop()
		delete(w.pending, id)
	}
}

func (w *Watcher) index(ctx context.Context, id string) {
	err := w.handler.IndexNote(ctx, id)
	switch {
	case err == nil:
		w.logger.Info("note indexed", zap.String("id", id))
	case errors.Is(err, models.ErrNotFound):
		// Gone before the debounce fired.
		w.remove(ctx, id)
	default:
		w.logger.Warn("failed to index note", zap.String("id", id), zap.Error(err))
	}
}

func (w *Watcher) remove(ctx context.Context, id string) {
	if err := w.handler.Remove(ctx, id); err != nil {
		w.logger.Warn("failed to remove embedding", zap.String("id", id), zap.Error(err))
		return
	}
	w.logger.Info("note removed", zap.String("id", id))
}

// Pending returns how many notes are waiting for their debounce to expire.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop stops watching and drops pending (not yet fired) updates. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	fsw := w.fsw
	w.fsw = nil
	w.started = false
	w.mu.Unlock()

	w.stop.Do(func() { close(w.done) })
	_ = fsw.Close()
	w.wg.Wait()
}
