// Package main is the Concierge CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/catalog"
	"github.com/hyperjump/concierge/internal/cli"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/indexer"
	"github.com/hyperjump/concierge/internal/keyword"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/news"
	"github.com/hyperjump/concierge/internal/search"
	"github.com/hyperjump/concierge/internal/server"
	"github.com/hyperjump/concierge/internal/storage"
	"github.com/hyperjump/concierge/internal/vector"
	"github.com/hyperjump/concierge/internal/watcher"
	"github.com/hyperjump/concierge/internal/weather"
	"github.com/hyperjump/concierge/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/concierge/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads .env files and the config at path. When path is the default, a
// config.yaml in the current directory wins so development runs pick up the project config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	envFiles := []string{".env"}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	envFiles = append(envFiles, filepath.Join(filepath.Dir(path), ".env"))
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, "", err
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
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "index":
		runIndex()
	case "weather":
		runWeather()
	case "news":
		runNews()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("concierge version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (indexing, catalog changes, remote calls)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.FAQ.IndexOnStartupOrDefault() {
		n, _, err := components.Indexer.Sync(ctx, cfg.FAQ.CatalogPath)
		if err != nil {
			logger.Fatal("Failed to index FAQ catalog", zap.String("path", cfg.FAQ.CatalogPath), zap.Error(err))
		}
		logger.Info("faq catalog ready", zap.Int("entries", n))
	}

	if cfg.FAQ.Watch {
		idx := components.Indexer
		w, err := watcher.NewWatcher(cfg.FAQ.CatalogPath, func(path string) {
			n, changed, err := idx.Sync(ctx, path)
			if err != nil {
				// Keep serving the previous index; a half-edited file should not take the server down.
				logger.Warn("catalog reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			if changed {
				logger.Info("catalog reloaded", zap.String("path", path), zap.Int("entries", n))
			}
		}, watcher.WithLogger(logger))
		if err != nil {
			logger.Fatal("Failed to create watcher", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	if maxAge := cfg.Session.MaxAge(); maxAge > 0 {
		go storage.PruneIdle(ctx, components.Sessions, maxAge, storage.PruneInterval(maxAge), logger)
	}

	srv := server.NewServer(server.Services{
		Engine:      components.Engine,
		Indexer:     components.Indexer,
		VectorIndex: components.VectorIndex,
		Suggester:   components.Suggester,
		Weather:     weather.NewClient(cfg.Weather, weather.WithLogger(logger)),
		News:        news.NewClient(cfg.News, news.WithLogger(logger)),
		Sessions:    components.Sessions,
	}, cfg, logger)
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

// printAskUsage prints ask subcommand usage.
func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: concierge ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces. Quotes are optional.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  concierge ask what are your opening hours
  concierge ask --server "" --explain "how do I reset my password"   # no server, show the match
  concierge ask --output json do you ship internationally
`)
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the positional
// words to the front so flag.Parse sees them; the flag package stops at the first
// non-flag argument.
func argsReorder(args []string) []string {
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

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = answer directly without a running server)")
	explain := fs.Bool("explain", false, "show the matched entry id and score (direct mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)

	if *serverURL != "" && !*explain {
		resp, err := askViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, logger, components := directComponents(*configPath)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	if err := ensureIndexed(ctx, components, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}

	if *explain {
		m, found, err := components.Engine.Match(ctx, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteMatch(os.Stdout, query, m, found, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	answer, err := components.Engine.Answer(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, &models.AskResponse{Query: query, Answer: answer}, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL string, query string) (*models.AskResponse, error) {
	body, err := json.Marshal(models.AskRequest{Query: query})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/faq/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// ensureIndexed indexes the catalog when the vector index is empty, so direct-mode
// questions against a fresh in-memory index still get answers.
func ensureIndexed(ctx context.Context, c *Components, cfg *config.Config) error {
	if err := c.VectorIndex.EnsureIndex(ctx); err != nil {
		return &models.ProviderError{Op: "ensure index", Err: err}
	}
	size, err := c.VectorIndex.Size(ctx)
	if err != nil {
		return &models.ProviderError{Op: "index size", Err: err}
	}
	if size > 0 {
		return nil
	}
	_, _, err = c.Indexer.Sync(ctx, cfg.FAQ.CatalogPath)
	return err
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; when set, ask the running server to re-index")
	force := fs.Bool("force", false, "re-embed every entry even if the catalog is unchanged")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		target := *serverURL + "/api/v1/faq/index"
		if *force {
			target += "?force=true"
		}
		resp, err := http.Post(target, "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Index failed: request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Index failed: server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Print(string(b))
		return
	}

	cfg, logger, components := directComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	path := cfg.FAQ.CatalogPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	entries, err := catalog.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	n, err := components.Indexer.Index(context.Background(), entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d FAQ entries from %s\n", n, path)
}

func runWeather() {
	fs := flag.NewFlagSet("weather", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "log remote failures")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	city := buildQuery(fs.Args())
	if city == "" {
		fmt.Println("Usage: concierge weather [flags] <city>")
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Weather.APIKey == "" {
		fmt.Fprintln(os.Stderr, (&config.MissingKeysError{Keys: []string{"weather.api_key (WEATHER_API_KEY)"}}).Error())
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	msg := weather.NewClient(cfg.Weather, weather.WithLogger(logger)).Lookup(context.Background(), city)
	_ = cli.WriteMessage(os.Stdout, msg, format)
}

func runNews() {
	fs := flag.NewFlagSet("news", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "log remote failures")
	limit := fs.Int("limit", 0, "number of headlines (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseOutput(*outputFormat)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.News.APIKey == "" {
		fmt.Fprintln(os.Stderr, (&config.MissingKeysError{Keys: []string{"news.api_key (NEWS_API_KEY)"}}).Error())
		os.Exit(1)
	}
	if *limit > 0 {
		cfg.News.Limit = *limit
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	msg := news.NewClient(cfg.News, news.WithLogger(logger)).Headlines(context.Background())
	_ = cli.WriteMessage(os.Stdout, msg, format)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	FAQ              indexer.Stats `json:"faq"`
	VectorIndexSize  *int          `json:"vector_index_size,omitempty"`
	SuggestDocs      *uint64       `json:"suggest_docs,omitempty"`
	Sessions         int           `json:"sessions"`
	SessionStoreSize *int64        `json:"session_store_bytes,omitempty"`
	Config           struct {
		EmbeddingProvider   string  `json:"embedding_provider"`
		EmbeddingDimensions int     `json:"embedding_dimensions"`
		VectorIndexType     string  `json:"vector_index_type"`
		VectorIndexName     string  `json:"vector_index_name,omitempty"`
		CatalogPath         string  `json:"catalog_path"`
		MinScore            float64 `json:"min_score"`
		SessionStore        string  `json:"session_store"`
		Watch               bool    `json:"watch"`
	} `json:"config"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseOutput(*outputFormat)
	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, status)
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "faq_entries:        %d   # entries in the last indexed catalog\n", status.FAQ.Entries)
	if !status.FAQ.IndexedAt.IsZero() {
		fmt.Fprintf(w, "indexed_at:         %s\n", status.FAQ.IndexedAt.Format(time.RFC3339))
	}
	if status.VectorIndexSize != nil {
		fmt.Fprintf(w, "vector_index_size:  %d   # vectors in the index\n", *status.VectorIndexSize)
	}
	if status.SuggestDocs != nil {
		fmt.Fprintf(w, "suggest_docs:       %d   # questions in the suggestion index\n", *status.SuggestDocs)
	}
	fmt.Fprintf(w, "sessions:           %d\n", status.Sessions)
	if status.SessionStoreSize != nil {
		fmt.Fprintf(w, "session_db_bytes:   %d\n", *status.SessionStoreSize)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "embedding:          %s (%d dims)\n", status.Config.EmbeddingProvider, status.Config.EmbeddingDimensions)
	fmt.Fprintf(w, "vector_index:       %s", status.Config.VectorIndexType)
	if status.Config.VectorIndexName != "" {
		fmt.Fprintf(w, " (%s)", status.Config.VectorIndexName)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "catalog_path:       %s\n", status.Config.CatalogPath)
	if status.Config.MinScore > 0 {
		fmt.Fprintf(w, "min_score:          %.2f\n", status.Config.MinScore)
	}
	fmt.Fprintf(w, "session_store:      %s\n", status.Config.SessionStore)
	fmt.Fprintf(w, "watch:              %t\n", status.Config.Watch)
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// directComponents loads config and builds the FAQ pipeline for commands that run without a server.
func directComponents(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateFAQ(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return cfg, logger, components
}

// Components holds initialized services.
type Components struct {
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Suggester   *keyword.QuestionIndex
	Sessions    storage.SessionStore
	Engine      *search.Engine
	Indexer     *indexer.Indexer
}

func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Suggester != nil {
		_ = c.Suggester.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.Int("dimensions", c.Embedder.Dimensions()))

	c.VectorIndex, err = vector.NewVectorIndex(cfg.Vector, c.Embedder.Dimensions(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("type", cfg.Vector.Type),
		zap.String("name", cfg.Vector.IndexName))

	c.Suggester, err = keyword.NewQuestionIndex(cfg.FAQ.SuggestIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize suggestion index: %w", err)
	}

	c.Sessions, err = storage.NewSessionStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	c.Engine = search.NewEngine(c.Embedder, c.VectorIndex,
		search.WithMinScore(cfg.FAQ.MinScore),
		search.WithLogger(logger))
	c.Indexer = indexer.NewIndexer(c.Embedder, c.VectorIndex,
		indexer.WithBatchSize(cfg.FAQ.BatchSize),
		indexer.WithSuggester(c.Suggester),
		indexer.WithLogger(logger))
	return c, nil
}

func printUsage() {
	fmt.Println(`concierge - FAQ assistant, weather, news and to-do dashboard

Usage:
  concierge server [flags]             Start the HTTP server and dashboard
  concierge ask [flags] <question>     Answer a question from the FAQ catalog
  concierge index [flags] [catalog]    Embed and index the FAQ catalog
  concierge weather [flags] <city>     Show current weather for a city
  concierge news [flags]               Show top headlines
  concierge status [flags]             Show server index/session status
  concierge version                    Show version
  concierge help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/concierge/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to answer without a server.
  --explain          Show the matched entry id and score (direct mode)
  --output string    Output format: text or json (default: text)

Index Flags:
  --config string    Config file path
  --server string    Ask a running server to re-index instead of indexing directly
  --force            Re-embed even if the catalog is unchanged

Weather / News Flags:
  --config string    Config file path
  --output string    Output format: text or json
  --limit int        Number of headlines (news only)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Environment:
  PINECONE_API_KEY, PINECONE_ENVIRONMENT, WEATHER_API_KEY, NEWS_API_KEY and
  EMBEDDING_API_KEY override the config file; a CONCIERGE_ prefix takes precedence.
  A .env file in the working directory or next to the config is loaded first.

Examples:
  concierge server --debug
  concierge ask what are your opening hours
  concierge index --force ./faqs.yaml
  concierge weather Paris
  concierge news --limit 3`)
}
