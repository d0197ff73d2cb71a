package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"akademik-ai/internal/cache"
	"akademik-ai/internal/config"
	"akademik-ai/internal/http"
	"akademik-ai/internal/llm"
	"akademik-ai/internal/mention"
	"akademik-ai/internal/metrics"
	"akademik-ai/internal/orchestrator"
	"akademik-ai/internal/router"
	"akademik-ai/internal/semantic"
	"akademik-ai/internal/storage"
	"akademik-ai/internal/structured"
	"akademik-ai/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	metricRepo := storage.NewMetricRepo(db)

	ctx := context.Background()

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"}, llm.EncodePassage)
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelCandidates(),
		cfg.LLMTimeout, cfg.LLMTemperature, cfg.RetrySleep)

	ttlCache := cache.New()
	resolver := mention.NewResolver(docRepo, ttlCache, cfg.MentionCacheTTL, cfg.UserDocsCacheTTL)
	routes := router.New(true, ttlCache, cfg.RouteCacheTTL)

	var polisher *structured.Polisher
	if cfg.PolishEnabled {
		polisher = structured.NewPolisher(llmClient, cfg.PolishModel, cfg.PolishTemperature, cfg.PostValidateEnabled)
	}
	timezone, err := time.LoadLocation(cfg.AnalyticsTimezone)
	if err != nil {
		slog.Warn("Invalid analytics timezone, falling back to UTC", "timezone", cfg.AnalyticsTimezone)
		timezone = time.UTC
	}
	structuredPipeline := structured.NewPipeline(chunkRepo, docRepo, polisher, structured.Options{
		Enabled:                 cfg.AnalyticsEnabled,
		StrictTranscriptEnabled: cfg.StrictTranscriptEnabled,
		LowGrades:               cfg.LowGrades,
		Timezone:                timezone,
	})

	retriever := semantic.NewRetriever(vectorStore, cfg.QdrantCollection, embedder, chunkRepo, docRepo, cfg)
	answerer := semantic.NewAnswerer(llmClient, cfg.MaxContextChars, cfg.CitationEnrichmentEnabled)
	semanticPipeline := semantic.NewPipeline(retriever, answerer)

	sink := metrics.NewSink(metricRepo)
	modular := orchestrator.NewModular(structuredPipeline, semanticPipeline, resolver, routes, sink)
	legacy := orchestrator.NewLegacy(structuredPipeline, semanticPipeline, resolver, sink)
	bot := orchestrator.NewRollout(modular, legacy, cfg.ModularOrchestratorEnabled, cfg.ModularTrafficPct)
	slog.Info("Orchestrator initialized",
		"modular_enabled", cfg.ModularOrchestratorEnabled,
		"modular_traffic_pct", cfg.ModularTrafficPct,
	)

	deps := &http.Deps{
		Bot:            bot,
		Vectors:        vectorStore,
		CollectionName: cfg.QdrantCollection,
		Metrics:        metricRepo,
	}
	apiRouter := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "models", cfg.ModelCandidates())
	if err := nethttp.ListenAndServe(addr, apiRouter); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
