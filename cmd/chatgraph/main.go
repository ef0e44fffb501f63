// Package main is the chatgraph CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/archive"
	"github.com/hyperjump/chatgraph/internal/cli"
	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/processor"
	"github.com/hyperjump/chatgraph/internal/render"
	"github.com/hyperjump/chatgraph/internal/search"
	"github.com/hyperjump/chatgraph/internal/server"
	"github.com/hyperjump/chatgraph/internal/storage"
	"github.com/hyperjump/chatgraph/internal/views"
	"github.com/hyperjump/chatgraph/internal/watcher"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/chatgraph/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServer()
	case "process":
		runProcess()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "timeline":
		runTimeline()
	case "show":
		runShow()
	case "render":
		runRender()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("chatgraph version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, creates the logger and opens the components.
// The conversation index is opened only when withIndex is set, since a
// running server holds its lock.
func setup(configPath string, debug, withIndex bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger, withIndex)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func parseFormat(raw string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(raw)
	if err != nil {
		fail("%v", err)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	archivePath := fs.String("archive", "", "conversation export to process (overrides processing.archive_path)")
	watch := fs.Bool("watch", false, "reprocess incrementally when the export changes (overrides watch.enabled)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()
	if *archivePath != "" {
		abs, err := filepath.Abs(*archivePath)
		if err != nil {
			fail("Invalid archive path: %v", err)
		}
		cfg.Processing.ArchivePath = abs
	}

	srv := server.NewServer(components.Engine, components.Processor, components.Store, cfg, logger)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if (cfg.Watch.Enabled || *watch) && cfg.Processing.ArchivePath != "" {
		mode := processor.Incremental{MaxToProcess: cfg.Processing.MaxToProcess}
		watchSvc := watcher.NewWatcher(
			[]string{cfg.Processing.ArchivePath},
			cfg.Watch.Extensions,
			func(path string) {
				if _, err := srv.StartRun("", mode); err != nil {
					if errors.Is(err, processor.ErrRunInProgress) {
						logger.Info("archive changed during a run; skipping", zap.String("path", path))
						return
					}
					logger.Warn("reprocess after change failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Watch.Debounce()),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// processMode selects a range run when either bound is set, else an
// incremental run. An unset end runs the range to the end of the export.
func processMode(start, end, maxRun int) processor.Mode {
	if start >= 0 || end >= 0 {
		r := processor.Range{Start: start, End: end}
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End < 0 {
			r.End = processor.ToEnd
		}
		return r
	}
	return processor.Incremental{MaxToProcess: maxRun}
}

func runProcess() {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	archivePath := fs.String("archive", "", "conversation export (.json or .zip); defaults to processing.archive_path")
	start := fs.Int("start", -1, "first conversation index of a range run")
	end := fs.Int("end", -1, "end index (exclusive) of a range run; unset means the end of the export")
	maxRun := fs.Int("max", -1, "maximum conversations for an incremental run (default processing.max_to_process)")
	quiet := fs.Bool("quiet", false, "do not print progress")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()

	path := *archivePath
	if path == "" {
		path = cfg.Processing.ArchivePath
	}
	if path == "" {
		fail("No archive given: pass --archive or set processing.archive_path")
	}
	convs, err := archive.Load(path)
	if err != nil {
		fail("Failed to load archive: %v", err)
	}
	if bad := archive.Malformed(convs); len(bad) > 0 {
		logger.Warn("archive has malformed conversations", zap.Int("count", len(bad)), zap.String("first", bad[0].ID))
	}
	if *maxRun < 0 {
		*maxRun = cfg.Processing.MaxToProcess
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	job := components.Processor.Start(ctx, convs, processMode(*start, *end, *maxRun))
	for p := range job.Progress() {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "\r%-90s", cli.ProgressLine(p))
		}
	}
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	res, err := job.Wait()
	if err != nil {
		var pe *processor.PhaseError
		if errors.As(err, &pe) {
			fail("Processing failed during %s: %v", pe.Phase, pe.Err)
		}
		fail("Processing failed: %v", err)
	}
	if err := cli.WriteRunResult(os.Stdout, res, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: chatgraph search [flags] [query]\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query lists recent entities.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  chatgraph search python
  chatgraph search --types person,project ada
  chatgraph search --from 2024-01-01 --to 2024-03-31 rust
  chatgraph search --conversations "closure capture"   # full-text over conversations
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
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

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage access)")
	limit := fs.Int("limit", 0, "number of results (default search.max_results)")
	types := fs.String("types", "", "comma-separated entity types: "+typeList())
	from := fs.String("from", "", "only entities seen on or after this date (YYYY-MM-DD)")
	to := fs.String("to", "", "only entities first seen on or before this date (YYYY-MM-DD)")
	conversations := fs.Bool("conversations", false, "full-text search over conversations instead of entities")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)
	queryStr := buildSearchQuery(fs.Args())

	values := searchValues(queryStr, *types, *from, *to, *limit)
	client := newAPIClient(*serverURL)

	if *conversations {
		if queryStr == "" {
			printSearchUsage(fs)
			os.Exit(1)
		}
		hits, err := client.searchConversations(values)
		if errors.Is(err, errServerUnavailable) {
			hits, err = searchConversationsDirect(*configPath, queryStr, *limit)
		}
		if err != nil {
			fail("Search failed: %v", err)
		}
		if err := cli.WriteConversationHits(os.Stdout, queryStr, hits, format); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}

	response, err := client.search(values)
	if errors.Is(err, errServerUnavailable) {
		response, err = searchDirect(*configPath, values)
	}
	if err != nil {
		fail("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func typeList() string {
	names := make([]string, len(models.EntityTypes))
	for i, t := range models.EntityTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func searchDirect(configPath string, values url.Values) (*models.SearchResponse, error) {
	query, err := server.ParseSearchQuery(values)
	if err != nil {
		return nil, err
	}
	_, logger, components := setup(configPath, false, false)
	defer logger.Sync()
	defer components.Close()
	return components.Engine.Search(context.Background(), query)
}

func searchConversationsDirect(configPath, query string, limit int) ([]*models.ConversationHit, error) {
	_, logger, components := setup(configPath, false, true)
	defer logger.Sync()
	defer components.Close()
	return components.Engine.SearchConversations(context.Background(), query, limit)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = direct storage access)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	status, err := newAPIClient(*serverURL).status()
	if errors.Is(err, errServerUnavailable) {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func statusDirect(configPath string) (*cli.Status, error) {
	cfg, logger, components := setup(configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	stats, err := components.Store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if disk, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		stats.DiskBytes = disk
	}
	cp, err := components.Store.Checkpoint(ctx)
	if err != nil {
		return nil, err
	}
	history, err := components.Store.History(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := components.Store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	st := &cli.Status{
		Stats:      *stats,
		Checkpoint: cp,
		Runs:       len(history),
		Settings:   settings,
		Config: map[string]any{
			"archive_path":     cfg.Processing.ArchivePath,
			"database_path":    cfg.Storage.DatabasePath,
			"bleve_index_path": cfg.Storage.BleveIndexPath,
		},
	}
	if n := len(history); n > 0 {
		st.LastRun = &history[n-1]
	}
	return st, nil
}

func runTimeline() {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	from := fs.String("from", "", "first date (YYYY-MM-DD)")
	to := fs.String("to", "", "last date (YYYY-MM-DD)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	days, err := views.Timeline(context.Background(), components.Store, *from, *to)
	if err != nil {
		fail("Timeline failed: %v", err)
	}
	if err := cli.WriteTimeline(os.Stdout, days, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runShow() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)
	if fs.NArg() < 1 {
		fmt.Println("Usage: chatgraph show [flags] <entity-id>")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	detail, err := views.Detail(context.Background(), components.Store, fs.Arg(0))
	if err != nil {
		fail("Show failed: %v", err)
	}
	if err := cli.WriteDetail(os.Stdout, detail, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runRender() {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "graph.png", "output PNG path")
	types := fs.String("types", "", "comma-separated entity types to show")
	focus := fs.String("focus", "", "entity id to center and select")
	highlight := fs.String("highlight", "", "search query whose hits are highlighted")
	width := fs.Int("width", 0, "image width (default graph.width)")
	height := fs.Int("height", 0, "image height (default graph.height)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()
	if *width > 0 {
		cfg.Graph.Width = *width
	}
	if *height > 0 {
		cfg.Graph.Height = *height
	}

	ctx := context.Background()
	opts := render.ExportOptions{Focus: *focus}
	query, err := server.ParseSearchQuery(url.Values{"types": {*types}})
	if err != nil {
		fail("%v", err)
	}
	opts.Types = query.Types
	if *highlight != "" {
		resp, err := components.Engine.Search(ctx, &models.SearchQuery{Query: *highlight})
		if err != nil {
			fail("Highlight search failed: %v", err)
		}
		for _, res := range resp.Results {
			opts.Highlight = append(opts.Highlight, res.Entity.ID)
		}
	}
	entities, err := components.Store.GetAllEntities(ctx)
	if err != nil {
		fail("Failed to read entities: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		fail("Failed to create %s: %v", *out, err)
	}
	if err := render.WritePNG(f, &cfg.Graph, entities, opts); err != nil {
		_ = f.Close()
		fail("Render failed: %v", err)
	}
	if err := f.Close(); err != nil {
		fail("Failed to write %s: %v", *out, err)
	}
	logger.Info("graph rendered", zap.String("path", *out), zap.Int("entities", len(entities)))
	fmt.Printf("Wrote %s (%d entities)\n", *out, len(entities))
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "where to write the config file")
	archivePath := fs.String("archive", "", "conversation export to record as processing.archive_path")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *archivePath, *force); err != nil {
		fail("Init failed: %v", err)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// writeDefaultConfig saves a config populated with defaults to path.
func writeDefaultConfig(path, archivePath string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if archivePath != "" {
		abs, err := filepath.Abs(archivePath)
		if err != nil {
			return err
		}
		cfg.Processing.ArchivePath = abs
	}
	return config.Save(path, cfg)
}

// Components holds initialized services.
type Components struct {
	Store     *storage.SQLiteStore
	ConvIndex *keyword.BleveIndex // nil unless opened
	Processor *processor.Processor
	Engine    *search.Engine
}

func (c *Components) Close() {
	if c.ConvIndex != nil {
		_ = c.ConvIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withIndex bool) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Store: store}

	procOpts := []processor.Option{processor.WithLogger(logger)}
	engineOpts := []search.Option{search.WithLogger(logger)}
	if withIndex {
		idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize conversation index: %w", err)
		}
		c.ConvIndex = idx
		procOpts = append(procOpts, processor.WithConversationIndex(idx))
		engineOpts = append(engineOpts, search.WithConversationIndex(idx))
	}

	c.Processor = processor.NewProcessor(store, &cfg.Processing, procOpts...)
	c.Engine = search.NewEngine(store, &cfg.Search, engineOpts...)
	return c, nil
}

func printUsage() {
	fmt.Println(`chatgraph - Knowledge graph of your AI chat history

Usage:
  chatgraph serve [flags]            Start the HTTP server
  chatgraph process [flags]          Extract entities from the conversation export
  chatgraph search [flags] [query]   Search entities (or conversations)
  chatgraph status [flags]           Show store, checkpoint and run status
  chatgraph timeline [flags]         Show entities per day
  chatgraph show [flags] <id>        Show one entity with its conversations and relations
  chatgraph render [flags]           Write the entity graph as a PNG image
  chatgraph init [flags]             Write a config file with default settings
  chatgraph version                  Show version
  chatgraph help                     Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/chatgraph/config.yaml)
  --debug            Enable debug logging
  --archive string   Conversation export to process
  --watch            Reprocess incrementally when the export changes

Process Flags:
  --archive string   Conversation export (.json or .zip)
  --start int        First index of a range run (reprocesses unconditionally)
  --end int          End index (exclusive) of a range run
  --max int          Maximum conversations for an incremental run
  --quiet            Do not print progress
  --output string    Output format: text or json

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Falls back to direct storage when unreachable.
  --limit int        Number of results
  --types string     Comma-separated entity types
  --from, --to       Date filters (YYYY-MM-DD)
  --conversations    Full-text search over conversations
  --output string    Output format: text or json

Render Flags:
  --out string       Output PNG path (default: graph.png)
  --types string     Comma-separated entity types to show
  --focus string     Entity id to center and select
  --highlight string Search query whose hits are highlighted

Examples:
  chatgraph init --archive ~/Downloads/chatgpt-export.zip
  chatgraph process --archive ~/Downloads/chatgpt-export.zip
  chatgraph process --start 100 --end 200
  chatgraph search python
  chatgraph search --output json --types person ada
  chatgraph render --highlight rust --out rust.png
  chatgraph serve --watch`)
}
