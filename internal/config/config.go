package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RetrievalPlan holds the retrieval knobs for one query mode.
type RetrievalPlan struct {
	DenseK     int
	BM25K      int
	RerankTopN int
	UseHybrid  bool
	UseRerank  bool
}

// Config holds all configuration for the application.
// Every retrieval knob is runtime configuration so operators can tune
// recall/latency without a redeploy.
type Config struct {
	// LLM / chat completions
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	LLMBackupModels []string
	LLMTimeout      time.Duration
	LLMTemperature  float64
	RetrySleep      time.Duration

	// Structured polish
	PolishModel       string
	PolishTemperature float64

	// Embeddings
	EmbeddingBaseURL   string
	EmbeddingModelName string

	// Vector store
	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	// Storage
	DBPath string

	// Retrieval plans per query mode
	PlanGeneral       RetrievalPlan
	PlanDocTargeted   RetrievalPlan
	PlanDocReferenced RetrievalPlan

	// Grounding / fallback policy
	RelevanceThreshold    float64
	FilterFallbackEnabled bool
	MaxContextChars       int

	// Caches
	RouteCacheTTL    time.Duration
	MentionCacheTTL  time.Duration
	UserDocsCacheTTL time.Duration

	// Structured analytics
	AnalyticsEnabled        bool
	PolishEnabled           bool
	PostValidateEnabled     bool
	StrictTranscriptEnabled bool
	LowGrades               []string
	AnalyticsTimezone       string

	// Feature flags / rollout
	ModularOrchestratorEnabled bool
	ModularTrafficPct          int
	CitationEnrichmentEnabled  bool

	// API server
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up to find a project-level .env (where go.mod lives).
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://openrouter.ai/api"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "google/gemini-2.5-flash-lite"),
		LLMBackupModels: getEnvList("LLM_BACKUP_MODELS", []string{"openai/gpt-5-nano", "meta-llama/llama-3.3-70b-instruct:free"}),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_S", 45)) * time.Second,
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", 0.2),
		RetrySleep:      time.Duration(getEnvInt("RAG_RETRY_SLEEP_MS", 300)) * time.Millisecond,

		PolishModel:       getEnv("RAG_ANALYTICS_POLISH_MODEL", ""),
		PolishTemperature: getEnvFloat("RAG_ANALYTICS_POLISH_TEMPERATURE", 0),

		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "intfloat/multilingual-e5-base"),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "academic_chunks"),

		DBPath: getEnv("DB_PATH", "./data/akademik-ai.db"),

		PlanGeneral: RetrievalPlan{
			DenseK:     getEnvInt("RAG_GENERAL_DENSE_K", 6),
			BM25K:      getEnvInt("RAG_GENERAL_BM25_K", 8),
			RerankTopN: getEnvInt("RAG_GENERAL_RERANK_TOP_N", 4),
			UseHybrid:  getEnvBool("RAG_GENERAL_HYBRID_RETRIEVAL", false),
			UseRerank:  getEnvBool("RAG_GENERAL_RERANK_ENABLED", false),
		},
		PlanDocTargeted: RetrievalPlan{
			DenseK:     getEnvInt("RAG_DOC_TARGETED_DENSE_K", 18),
			BM25K:      getEnvInt("RAG_DOC_TARGETED_BM25_K", 28),
			RerankTopN: getEnvInt("RAG_DOC_TARGETED_RERANK_TOP_N", 10),
			UseHybrid:  getEnvBool("RAG_DOC_TARGETED_HYBRID_RETRIEVAL", true),
			UseRerank:  getEnvBool("RAG_DOC_TARGETED_RERANK_ENABLED", true),
		},
		PlanDocReferenced: RetrievalPlan{
			DenseK:     getEnvInt("RAG_DOC_DENSE_K", 12),
			BM25K:      getEnvInt("RAG_DOC_BM25_K", 20),
			RerankTopN: getEnvInt("RAG_DOC_RERANK_TOP_N", 4),
			UseHybrid:  getEnvBool("RAG_DOC_HYBRID_RETRIEVAL", false),
			UseRerank:  getEnvBool("RAG_DOC_RERANK_ENABLED", true),
		},

		RelevanceThreshold:    getEnvFloat("RAG_GENERAL_RELEVANCE_THRESHOLD", 0.18),
		FilterFallbackEnabled: getEnvBool("RAG_FILTER_FALLBACK_ENABLED", true),
		MaxContextChars:       getEnvInt("RAG_MAX_CONTEXT_CHARS", 6000),

		RouteCacheTTL:    time.Duration(getEnvInt("RAG_ROUTE_CACHE_TTL_S", 30)) * time.Second,
		MentionCacheTTL:  time.Duration(getEnvInt("RAG_MENTION_CACHE_TTL_S", 30)) * time.Second,
		UserDocsCacheTTL: time.Duration(getEnvInt("RAG_USER_DOCS_CACHE_TTL_S", 60)) * time.Second,

		AnalyticsEnabled:        getEnvBool("RAG_STRUCTURED_ANALYTICS_ENABLED", true),
		PolishEnabled:           getEnvBool("RAG_ANALYTICS_POLISH_ENABLED", true),
		PostValidateEnabled:     getEnvBool("RAG_ANALYTICS_POST_VALIDATE_ENABLED", true),
		StrictTranscriptEnabled: getEnvBool("RAG_ANALYTICS_STRICT_TRANSCRIPT_ENABLED", true),
		LowGrades:               getEnvList("RAG_ANALYTICS_LOW_GRADES", []string{"C", "D", "E", "CD", "D+", "D-"}),
		AnalyticsTimezone:       getEnv("RAG_ANALYTICS_TIMEZONE", "Asia/Jakarta"),

		ModularOrchestratorEnabled: getEnvBool("RAG_MODULAR_ORCHESTRATOR_ENABLED", true),
		ModularTrafficPct:          clampPct(getEnvInt("RAG_MODULAR_TRAFFIC_PCT", 100)),
		CitationEnrichmentEnabled:  getEnvBool("RAG_CITATION_ENRICHMENT_ENABLED", true),

		APIPort:   getEnv("API_PORT", "9000"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// QDRANT_VECTOR_SIZE must match the embedding model's output size; the
	// collection has to be recreated whenever it changes.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// ModelCandidates returns the ordered LLM candidate list: primary first,
// then backups, deduplicated.
func (c *Config) ModelCandidates() []string {
	models := append([]string{c.LLMModel}, c.LLMBackupModels...)
	out := make([]string, 0, len(models))
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		name := strings.TrimSpace(m)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %q", raw)
	}
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return defaultValue
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// getEnvList parses a comma- or newline-separated list.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.ReplaceAll(raw, ",", "\n")
	var out []string
	for _, part := range strings.Split(raw, "\n") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
