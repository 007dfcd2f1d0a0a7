// Package main is the kioku CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notes"
	"github.com/hyperjump/kioku/internal/ranking"
	"github.com/hyperjump/kioku/internal/related"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/titles"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

// defaultConfigPath returns ~/.config/kioku/config.yaml.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultPath
	}
	return filepath.Join(home, config.DefaultPath)
}

// loadConfig loads config from path. An empty path means: config.yaml in the current
// directory when it exists, else the default path, else built-in defaults.
// Returns the config and the path that was loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, "config.yaml")
		if _, err := os.Stat(local); err == nil {
			cfg, err := config.Load(local)
			if err != nil {
				return nil, "", err
			}
			return cfg, local, nil
		}
	}
	path = defaultConfigPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), "", nil
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// OPENAI_API_KEY may live in a .env file next to the notes.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "new":
		runNew(args)
	case "list", "ls":
		runList(args)
	case "show":
		runShow(args)
	case "related":
		runRelated(args)
	case "search":
		runSearch(args)
	case "import":
		runImport(args)
	case "reindex":
		runReindex(args)
	case "prune":
		runPrune(args)
	case "status":
		runStatus(args)
	case "server":
		runServer(args)
	case "watch":
		runWatch(args)
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kioku - plain-text notes with related-note suggestions

Usage: kioku <command> [flags] [args]

Commands:
  new [--title T] [text...]   Create a note from args or stdin and show related notes
  list [--json]               List notes, newest first
  show <n|file> [--json]      Show a note and its related notes
  related <n|file> [--json]   Show related notes only
  search [--semantic|--hybrid] <q...>
                              Search notes by keyword, meaning, or both
  import [--title T] <file>   Create a note from a document (` + strings.Join(extract.Extensions(), " ") + `)
  reindex [--all]             Embed notes that have no embedding (or all notes)
  prune                       Remove embeddings of deleted notes
  status [--json]             Show store and notes statistics
  server                      Run the HTTP API
  watch                       Re-embed notes as they change
  version                     Print the version

Every command accepts --config <path>. Notes are referenced by their number in
"kioku list" or by filename.
`)
}

// fail prints "Failed to <action>: <err>" to stderr and exits 1.
func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "Failed to %s: %v\n", action, err)
	os.Exit(1)
}

// reorderArgs moves flags (and their values) that appear after positional arguments
// to the front so that flag.Parse sees them; "kioku related 3 --json" then works
// like "kioku related --json 3".
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// readContent returns the joined args, or stdin when there are none.
func readContent(args []string, stdin io.Reader) (string, error) {
	if text := joinArgs(args); text != "" {
		return text, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// titleFromPath derives a note title from an imported file name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("_", " ").Replace(title))
}

func outputFormat(asJSON bool) cli.OutputFormat {
	if asJSON {
		return cli.OutputJSON
	}
	return cli.OutputText
}

// Components holds initialized services.
type Components struct {
	Store    storage.VectorStore
	Notes    *notes.Repository
	Embedder embedding.Embedder
	Keyword  keyword.KeywordIndex
	Service  *related.Service
}

func (c *Components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeComponents wires the store, notes, providers and service from cfg. The
// in-memory keyword index is only built when withKeyword is set.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withKeyword bool) (*Components, error) {
	c := &Components{}
	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.Path(), storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	c.Notes = notes.NewRepository(cfg.Notes.Directory,
		notes.WithExtension(cfg.Notes.Extension),
		notes.WithLogger(logger),
	)

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	opts := []related.Option{
		related.WithLogger(logger),
		related.WithTitleGenerator(titles.New(cfg.Title, logger)),
		related.WithLimit(cfg.Related.Limit),
		related.WithThresholds(cfg.Related.Thresholds),
		related.WithStorePath(cfg.Storage.Path()),
	}
	if withKeyword {
		idx, err := keyword.NewBleveIndex("")
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.Keyword = idx
		opts = append(opts, related.WithKeywordIndex(idx))
	}
	c.Service = related.NewService(c.Store, c.Notes, c.Embedder, opts...)

	if withKeyword {
		n, err := c.Service.SyncKeywordIndex(context.Background())
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to build keyword index: %w", err)
		}
		logger.Debug("keyword index built", zap.Int("notes", n))
	}
	return c, nil
}

// setup loads config, creates the logger and initializes components. Long-running
// commands get the regular logger; one-shot commands a quiet console logger.
func setup(configPath string, longRunning, withKeyword bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("load config", err)
	}
	newLogger := utils.NewCLILogger
	if longRunning {
		newLogger = utils.NewLogger
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fail("create logger", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("notes", cfg.Notes.Directory))

	components, err := initializeComponents(cfg, logger, withKeyword)
	if err != nil {
		_ = logger.Sync()
		fail("initialize", err)
	}
	return cfg, logger, components
}

func floorThreshold(cfg *config.Config) float64 {
	t := cfg.Related.Thresholds
	if len(t) == 0 {
		t = ranking.DefaultThresholds
	}
	return t[len(t)-1]
}

func resolveNote(c *Components, ref string) string {
	id, err := c.Notes.Resolve(ref)
	if err != nil {
		fail("find note", err)
	}
	return id
}

// printRelated prints related notes for id. A note that was never embedded is reported
// instead of failing.
func printRelated(ctx context.Context, cfg *config.Config, c *Components, id string, format cli.OutputFormat) {
	rel, err := c.Service.Related(ctx, id)
	if errors.Is(err, models.ErrNotFound) && format == cli.OutputText {
		fmt.Println("Related notes: not available yet (run \"kioku reindex\")")
		return
	}
	if err != nil {
		fail("find related notes", err)
	}
	if err := cli.WriteRelated(os.Stdout, rel, format, floorThreshold(cfg)); err != nil {
		fail("write output", err)
	}
}

func runNew(args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	title := fs.String("title", "", "note title (suggested from the content when empty)")
	_ = fs.Parse(reorderArgs(args))

	content, err := readContent(fs.Args(), os.Stdin)
	if err != nil {
		fail("read note", err)
	}
	if content == "" {
		fmt.Fprintln(os.Stderr, "Nothing to save: note is empty")
		os.Exit(1)
	}

	cfg, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	ctx := context.Background()
	note, err := c.Service.CreateNote(ctx, models.NoteInput{Title: *title, Content: content})
	if note.Filename == "" {
		fail("create note", err)
	}
	fmt.Printf("Saved %s\n", note.Filename)
	if err != nil {
		fail("embed note", err)
	}
	fmt.Println()
	printRelated(ctx, cfg, c, note.Filename, cli.OutputText)
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	title := fs.String("title", "", "note title (defaults to the file name)")
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kioku import [--title T] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	if !extract.Supported(filepath.Ext(path)) {
		fail("import", fmt.Errorf("unsupported file type %q (supported: %s)", filepath.Ext(path), strings.Join(extract.Extensions(), " ")))
	}
	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fail("extract text", err)
	}
	if strings.TrimSpace(text) == "" {
		fail("import", fmt.Errorf("no text found in %s", path))
	}
	if *title == "" {
		*title = titleFromPath(path)
	}

	cfg, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	ctx := context.Background()
	note, err := c.Service.CreateNote(ctx, models.NoteInput{Title: *title, Content: text})
	if note.Filename == "" {
		fail("create note", err)
	}
	fmt.Printf("Imported %s as %s\n", path, note.Filename)
	if err != nil {
		fail("embed note", err)
	}
	fmt.Println()
	printRelated(ctx, cfg, c, note.Filename, cli.OutputText)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(reorderArgs(args))

	_, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	list, err := c.Notes.List()
	if err != nil {
		fail("list notes", err)
	}
	if err := cli.WriteNoteList(os.Stdout, list, outputFormat(*asJSON)); err != nil {
		fail("write output", err)
	}
}

func runShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kioku show <n|filename>")
		os.Exit(1)
	}

	cfg, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	ctx := context.Background()
	id := resolveNote(c, fs.Arg(0))
	note, err := c.Notes.Get(id)
	if err != nil {
		fail("read note", err)
	}
	if *asJSON {
		out, err := showNote(ctx, c, note)
		if err != nil {
			fail("find related notes", err)
		}
		if err := cli.WriteJSON(os.Stdout, out); err != nil {
			fail("write output", err)
		}
		return
	}
	cli.WriteNote(os.Stdout, note)
	fmt.Println()
	printRelated(ctx, cfg, c, id, cli.OutputText)
}

type showOutput struct {
	Note    models.Note          `json:"note"`
	Related *models.RelatedNotes `json:"related,omitempty"`
}

// showNote pairs a note with its related notes. A note without an embedding yet has
// no related key; every other failure is returned.
func showNote(ctx context.Context, c *Components, note models.Note) (showOutput, error) {
	out := showOutput{Note: note}
	rel, err := c.Service.Related(ctx, note.Filename)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return out, err
	default:
		out.Related = rel
	}
	return out, nil
}

func runRelated(args []string) {
	fs := flag.NewFlagSet("related", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kioku related [--json] <n|filename>")
		os.Exit(1)
	}

	cfg, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	id := resolveNote(c, fs.Arg(0))
	printRelated(context.Background(), cfg, c, id, outputFormat(*asJSON))
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	semantic := fs.Bool("semantic", false, "rank by meaning (embeddings) instead of keywords")
	hybrid := fs.Bool("hybrid", false, "blend keyword and semantic scores")
	limit := fs.Int("limit", 10, "number of results")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(reorderArgs(args))
	query := joinArgs(fs.Args())
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: kioku search [--semantic|--hybrid] [--limit N] <query>")
		os.Exit(1)
	}

	_, logger, c := setup(*configPath, false, !*semantic || *hybrid)
	defer logger.Sync()
	defer c.Close()

	if *hybrid {
		fused, err := c.Service.HybridSearch(context.Background(), query, *limit)
		if err != nil {
			fail("search", err)
		}
		if err := cli.WriteHybridResults(os.Stdout, query, fused, outputFormat(*asJSON)); err != nil {
			fail("write output", err)
		}
		return
	}

	results, err := c.Service.Search(context.Background(), query, *semantic, *limit)
	if err != nil {
		fail("search", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, query, results, *semantic, outputFormat(*asJSON)); err != nil {
		fail("write output", err)
	}
}

func runReindex(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	all := fs.Bool("all", false, "re-embed every note, not only notes without an embedding")
	_ = fs.Parse(reorderArgs(args))

	_, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	start := time.Now()
	report, err := c.Service.Reindex(context.Background(), *all)
	fmt.Printf("Embedded %d note(s), %d already up to date (%s)\n",
		len(report.Indexed), report.Skipped, time.Since(start).Round(time.Millisecond))
	if err != nil {
		fail("reindex", err)
	}
}

func runPrune(args []string) {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	_ = fs.Parse(reorderArgs(args))

	_, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	removed, err := c.Service.Cleanup(context.Background())
	if err != nil {
		fail("prune", err)
	}
	for _, id := range removed {
		fmt.Printf("removed %s\n", id)
	}
	fmt.Printf("Pruned %d stale embedding(s)\n", len(removed))
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(reorderArgs(args))

	_, logger, c := setup(*configPath, false, false)
	defer logger.Sync()
	defer c.Close()

	st, err := c.Service.Status(context.Background())
	if err != nil {
		fail("read status", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, outputFormat(*asJSON)); err != nil {
		fail("write output", err)
	}
}

func startWatcher(ctx context.Context, cfg *config.Config, logger *zap.Logger, c *Components) *watcher.Watcher {
	w := watcher.New(cfg.Notes.Directory, cfg.Notes.Extension, c.Service,
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
	)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	return w
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	watch := fs.Bool("watch", false, "also watch the notes directory (or set watch.enabled)")
	_ = fs.Parse(args)

	cfg, logger, c := setup(*configPath, true, true)
	defer logger.Sync()
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Watch.Enabled || *watch {
		w := startWatcher(ctx, cfg, logger, c)
		defer w.Stop()
	}

	srv := server.NewServer(c.Service, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	_ = fs.Parse(args)

	cfg, logger, c := setup(*configPath, true, false)
	defer logger.Sync()
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catch up on changes made while nothing was watching.
	if removed, err := c.Service.Cleanup(ctx); err != nil {
		logger.Warn("prune failed", zap.Error(err))
	} else if len(removed) > 0 {
		logger.Info("pruned stale embeddings", zap.Int("count", len(removed)))
	}
	if report, err := c.Service.Reindex(ctx, false); err != nil {
		logger.Warn("initial reindex incomplete", zap.Int("embedded", len(report.Indexed)), zap.Error(err))
	} else {
		logger.Info("initial reindex done", zap.Int("embedded", len(report.Indexed)), zap.Int("skipped", report.Skipped))
	}

	w := startWatcher(ctx, cfg, logger, c)
	defer w.Stop()
	logger.Info("Watching notes", zap.String("dir", cfg.Notes.Directory))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")
}
