// Package main is the nursesim CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/nursesim/internal/cli"
	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/embedding"
	"github.com/hyperjump/nursesim/internal/extract"
	"github.com/hyperjump/nursesim/internal/ingest"
	"github.com/hyperjump/nursesim/internal/llm"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/prompt"
	"github.com/hyperjump/nursesim/internal/ranking"
	"github.com/hyperjump/nursesim/internal/scenario"
	"github.com/hyperjump/nursesim/internal/search"
	"github.com/hyperjump/nursesim/internal/server"
	"github.com/hyperjump/nursesim/internal/storage"
	"github.com/hyperjump/nursesim/internal/translate"
	"github.com/hyperjump/nursesim/internal/watcher"
	"github.com/hyperjump/nursesim/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/nursesim/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists, so running from a project dir uses its config.
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
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "diseases":
		runDiseases()
	case "scenarios":
		runScenarios()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("nursesim version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config, creates the logger, and initializes components.
// It exits the process on failure.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolvedConfigPath, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (ingested files, prompts, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath))

	generator := newGenerator(cfg, components.Storage, logger)

	deps := server.Deps{
		Engine:     components.Engine,
		Generator:  generator,
		Scenarios:  scenario.NewService(components.Storage, scenario.WithServiceLogger(logger)),
		Store:      components.Storage,
		Embedder:   components.Embedder,
		Translator: components.Translator,
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Ingest.WatchDirectories) > 0 {
		watchSvc := watcher.NewWatcher(
			cfg.Ingest.WatchDirectories,
			cfg.Ingest.RecursiveOrDefault(),
			components.Ingester,
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Ingest.Debounce),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles()
		deps.Watch = watchSvc
	}

	srv := server.NewServer(deps, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
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

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: nursesim search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Korean queries are translated to English first.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are split into three panels: title matches, content matches (by keyword
occurrences) and similar diseases (by embedding similarity).

Examples:
  nursesim search pneumonia
  nursesim search 급성 신부전
  nursesim search --candidates keyword --output json fever
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchCandidatesDefaultFromConfig loads config at path and returns its candidate source.
// On load failure, returns "all".
func searchCandidatesDefaultFromConfig(path string) string {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Search.Candidates == "" {
		return models.CandidatesAll
	}
	return cfg.Search.Candidates
}

// searchArgsReorder moves any flags that appear after the query to the front so
// that flag.Parse sees them; the flag package stops at the first non-flag argument.
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
	searchArgs := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	candidates := fs.String("candidates", searchCandidatesDefaultFromConfig(searchConfigPathFromArgs(searchArgs, defaultConfigPath)),
		"candidate source: all or keyword (default from config)")
	skipTranslation := fs.Bool("skip-translation", false, "search the raw query without translating Korean")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Query:           queryStr,
		Candidates:      *candidates,
		SkipTranslation: *skipTranslation,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, searchQuery)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Engine.Search(context.Background(), searchQuery)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/diseases/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "walk subdirectories")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: nursesim ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var total ingest.Result
	for _, path := range fs.Args() {
		res, err := components.Ingester.IngestPath(ctx, path, *recursive)
		total.Files += res.Files
		total.Records += res.Records
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest %s failed: %v\n", path, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Ingested %d record(s) from %d file(s)\n", total.Records, total.Files)
}

func runDiseases() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: nursesim diseases <list|delete> [flags] [id...]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("diseases", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	query := fs.String("q", "", "only list diseases containing this text")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	switch sub {
	case "list":
		var diseases []*models.DiseaseRecord
		if *query != "" {
			diseases, err = components.Storage.SearchByText(ctx, *query)
		} else {
			diseases, err = components.Storage.ListDiseases(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteDiseases(os.Stdout, diseases, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "delete":
		if fs.NArg() < 1 {
			fmt.Println("Usage: nursesim diseases delete [flags] <id>...")
			os.Exit(1)
		}
		n, err := components.Storage.DeleteDiseases(ctx, fs.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d disease(s)\n", n)
	default:
		fmt.Printf("Unknown diseases subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runScenarios() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: nursesim scenarios <list|delete> [flags] [id...]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("scenarios", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	query := fs.String("q", "", "only list scenarios whose id contains this text")
	sortOrder := fs.String("sort", models.SortDateDesc, "sort order: date_desc, date_asc, title_asc or title_desc")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	svc := scenario.NewService(components.Storage, scenario.WithServiceLogger(logger))
	ctx := context.Background()

	switch sub {
	case "list":
		rows, err := svc.List(ctx, &models.ScenarioListQuery{Query: *query, Sort: *sortOrder})
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteScenarios(os.Stdout, rows, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "delete":
		n, err := svc.Delete(ctx, fs.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d scenario(s)\n", n)
	default:
		fmt.Printf("Unknown scenarios subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Diseases       int64                  `json:"diseases"`
	Scenarios      int64                  `json:"scenarios"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		status, err = directStatus(context.Background(), cfg, components)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	writeStatus(os.Stdout, status, format)
}

func directStatus(ctx context.Context, cfg *config.Config, c *Components) (*statusResponse, error) {
	diseases, err := c.Storage.CountDiseases(ctx)
	if err != nil {
		return nil, err
	}
	scenarios, err := c.Storage.CountScenarios(ctx)
	if err != nil {
		return nil, err
	}
	status := &statusResponse{
		Diseases:  diseases,
		Scenarios: scenarios,
		Config: map[string]interface{}{
			"storage_driver":       cfg.Storage.Driver,
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_dimensions": c.Embedder.Dimensions(),
			"llm_model":            cfg.LLM.Model,
			"similarity_threshold": cfg.Search.Threshold(),
			"keyword_top_n":        cfg.Search.KeywordTopN,
			"candidates":           cfg.Search.Candidates,
		},
	}
	if cfg.Storage.Driver == config.DriverSQLite {
		status.Config["database_path"] = cfg.Storage.DatabasePath
		if diskBytes, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}
	return status, nil
}

func writeStatus(w io.Writer, status *statusResponse, format cli.OutputFormat) {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	fmt.Fprintf(w, "diseases:           %d   # stored disease records\n", status.Diseases)
	fmt.Fprintf(w, "scenarios:          %d   # saved scenarios\n", status.Scenarios)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if len(status.Config) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	keys := make([]string, 0, len(status.Config))
	for k := range status.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-21s %v\n", k+":", status.Config[k])
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage    storage.Storage
	Embedder   embedding.Embedder
	Translator translate.Translator
	Engine     *search.Engine
	Ingester   *ingest.Ingester
}

// Close releases the store and the embedder.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	sqlStore, err := storage.Open(cfg.Storage,
		storage.WithLogger(logger),
		storage.WithDimensions(cfg.Embedding.Dimensions),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	store := storage.NewRetryingStore(sqlStore, cfg.Storage.RetryAttempts, cfg.Storage.RetryBaseDelay, logger)

	embedder, err := embedding.New(cfg.Embedding, cfg.LLM, logger)
	if err != nil {
		if cfg.Embedding.Provider != "onnx" {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		logger.Warn("ONNX embedder unavailable, falling back to mock embeddings", zap.Error(err))
		embedder = embedding.NewCachedEmbedder(embedding.NewMockEmbedder(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize)
	}

	var translator translate.Translator
	if cfg.Translation.EnabledOrDefault() {
		translator = translate.NewDeepL(cfg.Translation, translate.WithLogger(logger))
	}

	ranker := ranking.NewRanker(ranking.FromSearchConfig(cfg.Search))
	engine := search.NewEngine(store, embedder, translator, ranker,
		search.WithLogger(logger),
		search.WithDefaultCandidates(cfg.Search.Candidates),
	)
	ingester := ingest.NewIngester(store, embedder, extract.NewExtractor(), cfg.Ingest.Extensions, ingest.WithLogger(logger))

	return &Components{
		Storage:    store,
		Embedder:   embedder,
		Translator: translator,
		Engine:     engine,
		Ingester:   ingester,
	}, nil
}

// newGenerator wires the LLM client and prompt builder. Token counting uses the
// configured tiktoken encoding and falls back to rune counts when it cannot load.
func newGenerator(cfg *config.Config, store storage.DiseaseStore, logger *zap.Logger) *scenario.Generator {
	counter, err := prompt.NewTiktokenCounter(cfg.LLM.TokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, counting runes instead",
			zap.String("encoding", cfg.LLM.TokenEncoding), zap.Error(err))
		counter = prompt.RuneCounter{}
	}
	builder := prompt.NewBuilder(cfg.LLM.Model, prompt.NewTokenLimiter(cfg.LLM.MaxPromptTokens, counter))
	client := llm.NewClient(cfg.LLM, llm.WithLogger(logger))
	return scenario.NewGenerator(client, builder, store,
		scenario.WithGeneratorLogger(logger),
		scenario.WithSummaryLimits(cfg.Search.SummaryMaxLength, cfg.Search.BackgroundMaxChars),
	)
}

func printUsage() {
	fmt.Println(`nursesim - Nursing scenario simulator with disease search

Usage:
  nursesim server [flags]                    Start the HTTP server
  nursesim search [flags] <query>            Search diseases
  nursesim ingest [flags] <path>...          Load disease records from files or directories
  nursesim diseases list [flags]             List stored diseases
  nursesim diseases delete [flags] <id>...   Delete diseases
  nursesim scenarios list [flags]            List saved scenarios
  nursesim scenarios delete [flags] <id>...  Delete saved scenarios
  nursesim status [flags]                    Show storage status and configuration
  nursesim version                           Show version
  nursesim help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/nursesim/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string       Config file path (for direct storage mode)
  --server string       Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --candidates string   Candidate source: all or keyword
  --skip-translation    Search the raw query without translating Korean
  --output string       Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path
  --recursive        Walk subdirectories (default: true)

Diseases / Scenarios Flags:
  --config string    Config file path
  --q string         Filter text
  --sort string      Scenario sort order (default: date_desc)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  nursesim server
  nursesim ingest ./data/diseases
  nursesim search 폐렴
  nursesim search --output json pneumonia
  nursesim diseases list --q fever
  nursesim scenarios list --sort title_asc
  nursesim status --server ""`)
}
