// Package main is the buildsearch CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/config"
	"github.com/exilemind/buildsearch/internal/embedding"
	"github.com/exilemind/buildsearch/internal/feature"
	"github.com/exilemind/buildsearch/internal/ingest"
	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/internal/search"
	"github.com/exilemind/buildsearch/internal/server"
	"github.com/exilemind/buildsearch/internal/storage"
	"github.com/exilemind/buildsearch/internal/vector"
	"github.com/exilemind/buildsearch/internal/vectorizer"
	"github.com/exilemind/buildsearch/internal/watcher"
	"github.com/exilemind/buildsearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/buildsearch/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
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
	case "variants":
		runVariants()
	case "rebuild":
		runIndexAction("rebuild")
	case "save":
		runSave()
	case "optimize":
		runIndexAction("optimize")
	case "backup":
		runIndexAction("backup")
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("buildsearch version %s\n", version)
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

	// Restore the latest saved index when one exists; a fresh deployment
	// builds on first ingest instead.
	if err := components.Index.Load(""); err != nil {
		logger.Warn("no index snapshot restored", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Directory != "" {
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directory,
			time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond,
			func(ctx context.Context, records []*models.BuildRecord) error {
				_, err := components.Ingestor.IngestRecords(ctx, records)
				return err
			},
			logger,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Ingestor,
		components.Index,
		components.Store,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if components.Index.Size() > 0 {
		if _, err := components.Index.Save(""); err != nil {
			logger.Warn("index save on shutdown failed", zap.Error(err))
		}
	}
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8090", `server URL (empty = direct storage access)`)
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	class := fs.String("class", "", "filter: character class")
	ascendancy := fs.String("ascendancy", "", "filter: ascendancy")
	skill := fs.String("skill", "", "filter: main skill")
	goal := fs.String("goal", "", "filter: build goal")
	maxCost := fs.Float64("max-cost", 0, "filter: maximum cost (0 = unbounded)")
	minSimilarity := fs.Float64("min-similarity", -1, "similarity floor (-1 = config default; 0 is a valid floor)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	query := &models.SearchQuery{
		Query:      queryStr,
		Class:      *class,
		Ascendancy: *ascendancy,
		MainSkill:  *skill,
		Goal:       *goal,
		MaxCost:    *maxCost,
		MaxResults: *limit,
	}
	if *minSimilarity >= 0 {
		query.MinSimilarity = minSimilarity
	}
	if !query.HasText() && !query.HasStructuredFields() {
		fmt.Println("Usage: buildsearch search [flags] <query text>")
		fmt.Println("Provide query text or at least one structured flag (--class, --skill, ...).")
		os.Exit(1)
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		resp, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = resp
	} else {
		components, cleanup := mustInitDirect(*configPath)
		defer cleanup()
		resp, err := components.Engine.Search(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = resp
	}
	writeResponse(response, *outputFormat)
}

func runVariants() {
	fs := flag.NewFlagSet("variants", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = direct storage access)")
	limit := fs.Int("limit", 0, "number of variants (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: buildsearch variants [flags] <build-hash>")
		os.Exit(1)
	}
	hash := fs.Arg(0)

	var response *models.SearchResponse
	if *serverURL != "" {
		target := fmt.Sprintf("%s/api/v1/builds/%s/variants", *serverURL, hash)
		if *limit > 0 {
			target += fmt.Sprintf("?limit=%d", *limit)
		}
		resp, err := http.Get(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Variants failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		response = &models.SearchResponse{}
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, cleanup := mustInitDirect(*configPath)
		defer cleanup()
		record, err := components.Store.GetRecord(context.Background(), hash)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Build not found: %s\n", hash)
			os.Exit(1)
		}
		response, err = components.Engine.FindVariants(context.Background(), record, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Variants failed: %v\n", err)
			os.Exit(1)
		}
	}
	writeResponse(response, *outputFormat)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = direct storage access)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: buildsearch ingest [flags] <batch-file.json>")
		os.Exit(1)
	}
	records, err := watcher.ReadBatchFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read batch file: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("Batch file holds no builds")
		os.Exit(1)
	}

	var report ingest.Report
	if *serverURL != "" {
		body, _ := json.Marshal(map[string]interface{}{"builds": records})
		resp, err := http.Post(*serverURL+"/api/v1/builds", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Ingest failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, cleanup := mustInitDirect(*configPath)
		defer cleanup()
		r, err := components.Ingestor.IngestRecords(context.Background(), records)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		report = *r
	}
	fmt.Printf("Ingested %d of %d build(s)", report.Indexed, report.Received)
	if report.Failed > 0 {
		fmt.Printf(", %d failed", report.Failed)
	}
	if report.Rebuilt {
		fmt.Print(" (index rebuilt)")
	}
	fmt.Println()
}

func runSave() {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = direct storage access)")
	versionName := fs.String("version", "", "version name (empty = timestamped)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		body, _ := json.Marshal(map[string]string{"version": *versionName})
		resp, err := http.Post(*serverURL+"/api/v1/index/save", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Save failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Version string `json:"version"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		fmt.Printf("Index saved as version %s\n", out.Version)
		return
	}

	components, cleanup := mustInitDirect(*configPath)
	defer cleanup()
	if err := components.Index.Load(""); err != nil {
		fmt.Fprintf(os.Stderr, "No index to save: %v\n", err)
		os.Exit(1)
	}
	saved, err := components.Index.Save(*versionName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Save failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Index saved as version %s\n", saved)
}

// runIndexAction handles rebuild, optimize, and backup, which share the same
// fire-and-report shape.
func runIndexAction(action string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8090", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/index/"+action, "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		fmt.Fprintf(os.Stderr, "%s failed (%d): %s\n", action, resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println(strings.TrimSpace(string(b)))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = direct storage access)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var builds int64
	var stats vector.Stats
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Builds int64        `json:"builds"`
			Index  vector.Stats `json:"index"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		builds, stats = out.Builds, out.Index
	} else {
		components, cleanup := mustInitDirect(*configPath)
		defer cleanup()
		count, err := components.Store.CountRecords(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			os.Exit(1)
		}
		stats = components.Index.Stats()
		builds = count
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{"builds": builds, "index": stats})
	case "text":
		fmt.Printf("builds:            %d\n", builds)
		fmt.Printf("index_built:       %t\n", stats.Built)
		if stats.Built {
			fmt.Printf("index_type:        %s\n", stats.Type)
			fmt.Printf("index_size:        %d\n", stats.Size)
			fmt.Printf("dimensions:        %d\n", stats.Dimensions)
			fmt.Printf("metric:            %s\n", stats.Metric)
			fmt.Printf("est_memory_bytes:  %d\n", stats.EstimatedMemory)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func writeResponse(response *models.SearchResponse, format string) {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(response.Results) == 0 {
			fmt.Println("No results.")
			return
		}
		for _, r := range response.Results {
			m := r.Metadata
			name := m.Class
			if m.Ascendancy != "" {
				name = m.Ascendancy + " " + m.Class
			}
			fmt.Printf("%2d. %s | %s (score %.3f, similarity %.3f)\n",
				r.Rank, utils.Truncate(name, 40), utils.Truncate(m.MainSkill, 30), r.Score, r.Similarity)
			fmt.Printf("    hash %s  level %d  cost %.1f  goal %s  quality %s\n",
				m.Hash, m.Level, m.Cost, m.Goal, m.Quality)
			for _, reason := range r.BoostReasons {
				fmt.Printf("    boost: %s\n", reason)
			}
		}
		fmt.Printf("%d result(s) in %dms\n", response.Total, response.QueryTime)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", format)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    storage.BuildStore
	Embedder embedding.Embedder
	Index    *vector.Index
	Engine   *search.Engine
	Ingestor *ingest.Ingestor
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func mustInitDirect(configPath string) (*Components, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	// Client commands want a queryable index when a snapshot exists.
	if err := components.Index.Load(""); err != nil {
		logger.Debug("no index snapshot restored", zap.Error(err))
	}
	return components, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteBuildStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	blobs, err := storage.NewDiskBlobStore(cfg.Storage.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index storage: %w", err)
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	metric, err := vector.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}
	index := vector.NewIndex(vector.Options{
		Metric:           metric,
		Clusters:         cfg.Index.Clusters,
		NProbe:           cfg.Index.NProbe,
		RebuildThreshold: cfg.Index.RebuildThreshold,
		Rotate:           cfg.Index.Rotate,
	}, blobs, logger)

	vec := vectorizer.NewVectorizer(
		embedder,
		feature.NewSynthesizer(),
		cfg.Embedding.Dimensions,
		vectorizer.WithLogger(logger),
		vectorizer.WithChunkSize(cfg.Embedding.BatchChunkSize),
		vectorizer.WithParallelism(cfg.Embedding.Parallelism),
	)

	engine := search.NewEngine(index, vec, &cfg.Search, logger)
	ingestor := ingest.NewIngestor(store, vec, index, cfg.Search.MultiFeatureOrDefault(), logger)

	return &Components{
		Store:    store,
		Embedder: embedder,
		Index:    index,
		Engine:   engine,
		Ingestor: ingestor,
	}, nil
}

func printUsage() {
	fmt.Println(`buildsearch - similarity search over character builds

Usage:
  buildsearch server [flags]             Start the HTTP server
  buildsearch search [flags] <query>     Search for similar builds
  buildsearch variants [flags] <hash>    Find variants of a stored build
  buildsearch ingest [flags] <file>      Ingest a JSON batch file of builds
  buildsearch rebuild [flags]            Rebuild the index from the record store
  buildsearch save [flags]               Persist a versioned index snapshot
  buildsearch optimize [flags]           Retune index search parameters
  buildsearch backup [flags]             Back up the latest index snapshot
  buildsearch status [flags]             Show record and index status
  buildsearch version                    Show version
  buildsearch help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/buildsearch/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string          Server URL (default: http://localhost:8090). Use --server "" for direct storage access.
  --limit int              Number of results (0 = config default)
  --class string           Filter by character class
  --ascendancy string      Filter by ascendancy
  --skill string           Filter by main skill
  --goal string            Filter by build goal
  --max-cost float         Filter by maximum cost
  --min-similarity float   Similarity floor; 0 is valid, -1 uses the config default
  --output string          Output format: text or json

Examples:
  buildsearch server
  buildsearch search lightning arrow mapping build
  buildsearch search --class Ranger --max-cost 5 --output json
  buildsearch variants build:a1b2c3...
  buildsearch ingest builds.json
  buildsearch save --version v2
  buildsearch status --output json`)
}
