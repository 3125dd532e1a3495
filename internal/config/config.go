package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Index backends accepted by INDEX_BACKEND.
const (
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

// encryptionKeySize is the decoded length of ENCRYPTION_KEY.
const encryptionKeySize = 32

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EvalModelName      string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingDim       int
	ModelTimeout       time.Duration
	DBPath             string
	EncryptionKey      []byte
	UploadDir          string
	IndexBackend       string
	QdrantURL          string
	QdrantCollection   string
	PgvectorDSN        string
	WikipediaURL       string
	WebSearchURL       string
	ExternalSearchRPS  float64
	IngestWorkers      int
	IngestQueueSize    int
	APIPort            string
	LogLevel           slog.Level
	LogFormat          string
	Tuning             Tuning
}

// Tuning holds chunking, retrieval and context-assembly knobs.
// It is read from an optional YAML file; missing keys keep their defaults.
type Tuning struct {
	ChunkSize        int     `yaml:"chunk_size"`
	ChunkOverlap     int     `yaml:"chunk_overlap"`
	TopK             int     `yaml:"top_k"`
	FetchK           int     `yaml:"fetch_k"`
	Diversity        float64 `yaml:"diversity"`
	MaxContextChars  int     `yaml:"max_context_chars"`
	LeadPages        int     `yaml:"lead_pages"`
	IncludeLeadPages bool    `yaml:"include_lead_pages"`
	HistoryTurns     int     `yaml:"history_turns"`
	SummaryMaxChars  int     `yaml:"summary_max_chars"`
}

// DefaultTuning returns the tuning values used when no file overrides them.
func DefaultTuning() Tuning {
	return Tuning{
		ChunkSize:        1000,
		ChunkOverlap:     200,
		TopK:             5,
		FetchK:           20,
		Diversity:        0.5,
		MaxContextChars:  12000,
		LeadPages:        2,
		IncludeLeadPages: true,
		HistoryTurns:     10,
		SummaryMaxChars:  30000,
	}
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or up to five parents, it is loaded first;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
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

	llmModel := getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct")

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       llmModel,
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EvalModelName:      getEnv("EVAL_MODEL", llmModel),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "bge-small-en-v1.5"),
		DBPath:             getEnv("DB_PATH", "./data/paperchat.db"),
		UploadDir:          getEnv("UPLOAD_DIR", "./data/uploads"),
		IndexBackend:       strings.ToLower(getEnv("INDEX_BACKEND", BackendQdrant)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "document_chunks"),
		PgvectorDSN:        getEnv("PGVECTOR_DSN", ""),
		WikipediaURL:       getEnv("WIKIPEDIA_URL", "https://en.wikipedia.org"),
		WebSearchURL:       getEnv("WEB_SEARCH_URL", "https://api.duckduckgo.com"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	// EMBEDDING_DIM must match the output size of the embeddings model. Changing it
	// requires recreating the vector collection.
	dimStr := getEnv("EMBEDDING_DIM", "")
	if dimStr == "" {
		return nil, fmt.Errorf("EMBEDDING_DIM is required")
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIM must be a valid integer: %w", err)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIM must be greater than 0")
	}
	cfg.EmbeddingDim = dim

	// ENCRYPTION_KEY seals chat history at rest; losing it makes stored history unreadable.
	if cfg.EncryptionKey, err = parseEncryptionKey(getEnv("ENCRYPTION_KEY", "")); err != nil {
		return nil, err
	}

	if cfg.ModelTimeout, err = getDuration("MODEL_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = getPositiveInt("INGEST_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.IngestQueueSize, err = getPositiveInt("INGEST_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}
	rps, err := strconv.ParseFloat(getEnv("EXTERNAL_SEARCH_RPS", "2"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("EXTERNAL_SEARCH_RPS must be a positive number")
	}
	cfg.ExternalSearchRPS = rps

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	switch cfg.IndexBackend {
	case BackendQdrant, BackendMemory:
	case BackendPgvector:
		if cfg.PgvectorDSN == "" {
			return nil, fmt.Errorf("PGVECTOR_DSN is required when INDEX_BACKEND=pgvector")
		}
	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q", cfg.IndexBackend)
	}

	tuning, err := LoadTuning(getEnv("TUNING_FILE", "./tuning.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.UploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// LoadTuning reads tuning values from a YAML file. A missing file yields the defaults.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tuning, nil
		}
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	if err := tuning.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return tuning, nil
}

// Validate checks that tuning values are mutually consistent.
func (t Tuning) Validate() error {
	if t.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be greater than 0")
	}
	if t.ChunkOverlap < 0 || t.ChunkOverlap >= t.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size)")
	}
	if t.TopK <= 0 {
		return fmt.Errorf("top_k must be greater than 0")
	}
	if t.FetchK < t.TopK {
		return fmt.Errorf("fetch_k must be >= top_k")
	}
	if t.Diversity < 0 || t.Diversity > 1 {
		return fmt.Errorf("diversity must be in [0, 1]")
	}
	if t.MaxContextChars <= 0 {
		return fmt.Errorf("max_context_chars must be greater than 0")
	}
	if t.LeadPages < 0 {
		return fmt.Errorf("lead_pages must not be negative")
	}
	if t.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must not be negative")
	}
	if t.SummaryMaxChars <= 0 {
		return fmt.Errorf("summary_max_chars must be greater than 0")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseEncryptionKey decodes a base64 key, URL-safe or standard alphabet.
func parseEncryptionKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (generate one with `paperchat keygen`)")
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if key, err := enc.DecodeString(raw); err == nil {
			if len(key) != encryptionKeySize {
				return nil, fmt.Errorf("ENCRYPTION_KEY must decode to %d bytes, got %d", encryptionKeySize, len(key))
			}
			return key, nil
		}
	}
	return nil, fmt.Errorf("ENCRYPTION_KEY must be base64 encoded")
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
