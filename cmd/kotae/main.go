// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/registry"
	"github.com/hyperjump/kotae/internal/segment"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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
	// API keys may live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "stats":
		runStats()
	case "delete":
		runDelete()
	case "delete-tenant":
		runDeleteTenant()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging")
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		svc := components.Service
		watchTenant := cfg.Watch.Tenant
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			func(path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					logger.Warn("watch read file failed", zap.String("path", path), zap.Error(err))
					return
				}
				files := []models.FileUpload{{Filename: filepath.Base(path), Content: content}}
				if _, err := svc.Ingest(context.Background(), watchTenant, files); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if err := svc.DeleteDocument(context.Background(), watchTenant, filepath.Base(path)); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(components.Service, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument.
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

// parseOutputFormat maps the -output flag value to a cli format.
func parseOutputFormat(value string) (cli.OutputFormat, error) {
	switch value {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", value)
	}
}

func runQuery() {
	queryArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct mode when server is not running)")
	tenantKey := fs.String("tenant", "", "tenant key (required)")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae query -tenant <key> [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(queryArgs)

	question := buildQuestion(fs.Args())
	if *tenantKey == "" || question == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req := models.QueryRequest{Question: question, TopK: *topK}

	var result *models.QueryResult
	if *serverURL != "" {
		result, err = queryViaHTTP(*serverURL, *tenantKey, req)
	} else {
		var components *Components
		components, err = directComponents(*configPath)
		if err == nil {
			defer components.Close()
			result, err = components.Service.Query(context.Background(), *tenantKey, req)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	ingestArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct mode)")
	tenantKey := fs.String("tenant", "", "tenant key (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ingest -tenant <key> [flags] <file>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(ingestArgs)

	if *tenantKey == "" || fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	files := make([]models.FileUpload, 0, fs.NArg())
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			os.Exit(1)
		}
		files = append(files, models.FileUpload{Filename: filepath.Base(path), Content: content})
	}

	var result *models.IngestResult
	if *serverURL != "" {
		result, err = ingestViaHTTP(*serverURL, *tenantKey, files)
	} else {
		var components *Components
		components, err = directComponents(*configPath)
		if err == nil {
			defer components.Close()
			result, err = components.Service.Ingest(context.Background(), *tenantKey, files)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngestResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if result.FilesFailed > 0 {
		os.Exit(1)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct mode)")
	tenantKey := fs.String("tenant", "", "tenant key (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *tenantKey == "" {
		fmt.Println("Usage: kotae stats -tenant <key> [flags]")
		os.Exit(1)
	}
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats *models.StatsResult
	if *serverURL != "" {
		stats, err = statsViaHTTP(*serverURL, *tenantKey)
	} else {
		var components *Components
		components, err = directComponents(*configPath)
		if err == nil {
			defer components.Close()
			stats, err = components.Service.Stats(context.Background(), *tenantKey)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	deleteArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct mode)")
	tenantKey := fs.String("tenant", "", "tenant key (required)")
	_ = fs.Parse(deleteArgs)

	if *tenantKey == "" || fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete -tenant <key> [flags] <filename>")
		os.Exit(1)
	}
	filename := fs.Arg(0)

	var err error
	if *serverURL != "" {
		err = deleteViaHTTP(*serverURL, *tenantKey, filename)
	} else {
		var components *Components
		components, err = directComponents(*configPath)
		if err == nil {
			defer components.Close()
			err = components.Service.DeleteDocument(context.Background(), *tenantKey, filename)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", filename)
}

func runDeleteTenant() {
	fs := flag.NewFlagSet("delete-tenant", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct mode)")
	tenantKey := fs.String("tenant", "", "tenant key (required)")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(os.Args[2:])

	if *tenantKey == "" {
		fmt.Println("Usage: kotae delete-tenant -tenant <key> [-yes] [flags]")
		os.Exit(1)
	}
	if !*yes {
		fmt.Printf("Delete ALL documents for tenant %q? [y/N] ", *tenantKey)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	var err error
	if *serverURL != "" {
		err = deleteTenantViaHTTP(*serverURL, *tenantKey)
	} else {
		var components *Components
		components, err = directComponents(*configPath)
		if err == nil {
			defer components.Close()
			err = components.Service.DeleteTenant(context.Background(), *tenantKey)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Tenant data deleted: %s\n", *tenantKey)
}

func queryViaHTTP(serverURL, tenantKey string, query models.QueryRequest) (*models.QueryResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	var result models.QueryResult
	if err := doAPIRequest(http.MethodPost, serverURL+"/api/v1/query", tenantKey,
		"application/json", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func ingestViaHTTP(serverURL, tenantKey string, files []models.FileUpload) (*models.IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, file := range files {
		part, err := mw.CreateFormFile("files", file.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var result models.IngestResult
	if err := doAPIRequest(http.MethodPost, serverURL+"/api/v1/upload-files", tenantKey,
		mw.FormDataContentType(), &buf, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func statsViaHTTP(serverURL, tenantKey string) (*models.StatsResult, error) {
	var stats models.StatsResult
	if err := doAPIRequest(http.MethodGet, serverURL+"/api/v1/tenant/stats", tenantKey, "", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func deleteViaHTTP(serverURL, tenantKey, filename string) error {
	target := serverURL + "/api/v1/documents?filename=" + url.QueryEscape(filename)
	return doAPIRequest(http.MethodDelete, target, tenantKey, "", nil, nil)
}

func deleteTenantViaHTTP(serverURL, tenantKey string) error {
	return doAPIRequest(http.MethodDelete, serverURL+"/api/v1/tenant", tenantKey, "", nil, nil)
}

// doAPIRequest performs an API call with the tenant header set, decoding the
// JSON response into out when out is non-nil.
func doAPIRequest(method, target, tenantKey, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Tenant-ID", tenantKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Registry  registry.Registry
	Store     vectorstore.Store
	Embedder  embedding.Embedder
	Generator generation.Generator
	Service   *rag.Service
}

func (c *Components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

// directComponents loads config and initializes the pipeline for CLI
// commands running without a server.
func directComponents(configPath string) (*Components, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return initializeComponents(cfg, logger)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	reg, err := registry.NewSQLiteRegistry(cfg.Registry.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	var store vectorstore.Store
	switch cfg.VectorStore.Backend {
	case "memory":
		store = vectorstore.NewMemoryStore(cfg.Embedding.Dimensions)
	default:
		qdrantStore, err := vectorstore.NewQdrantStore(context.Background(), vectorstore.QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			APIKey:     os.Getenv(cfg.VectorStore.Qdrant.APIKeyEnv),
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		store = qdrantStore
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Provider == "mock" {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			_ = reg.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = openaiEmbedder
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	var generator generation.Generator
	if cfg.Generation.Provider == "mock" {
		generator = &generation.MockGenerator{Answer: "mock answer"}
	} else {
		openaiGenerator, err := generation.NewOpenAIGenerator(generation.OpenAIConfig{
			BaseURL:     cfg.Generation.BaseURL,
			APIKeyEnv:   cfg.Generation.APIKeyEnv,
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Timeout:     time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			_ = reg.Close()
			_ = store.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		generator = openaiGenerator
	}

	segmenter, err := segment.NewSegmenter(
		cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.Boundaries)
	if err != nil {
		_ = reg.Close()
		_ = store.Close()
		_ = embedder.Close()
		_ = generator.Close()
		return nil, fmt.Errorf("failed to initialize segmenter: %w", err)
	}

	service := rag.NewService(segmenter, embedder, generator, store, reg,
		rag.WithLogger(logger),
		rag.WithTopKLimits(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK),
	)

	return &Components{
		Registry:  reg,
		Store:     store,
		Embedder:  embedder,
		Generator: generator,
		Service:   service,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Multi-tenant document question answering

Usage:
  kotae server [flags]                        Start the HTTP server
  kotae ingest -tenant <key> <file>...        Ingest documents
  kotae query -tenant <key> <question>        Ask a question
  kotae stats -tenant <key>                   Show tenant statistics
  kotae delete -tenant <key> <filename>       Delete a document
  kotae delete-tenant -tenant <key>           Delete all tenant data
  kotae version                               Show version
  kotae help                                  Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Common Flags (ingest/query/stats/delete):
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode when the server is not running.
  --tenant string    Tenant key (required)
  --output string    Output format: text or json (ingest/query/stats)

Query Flags:
  --top-k int        Number of chunks to retrieve (0 = server default)

Examples:
  kotae server
  kotae ingest -tenant acme report.pdf notes.txt
  kotae query -tenant acme "What is the refund policy?"
  kotae query -tenant acme -output json -top-k 10 refund policy
  kotae stats -tenant acme
  kotae delete -tenant acme report.pdf
  kotae delete-tenant -tenant acme -yes`)
}
