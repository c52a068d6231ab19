package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// JWT
	JWTSecret string

	// Storage
	StoreBackend string // "postgres" | "sqlite" | "memory"
	DatabaseURL  string
	SQLitePath   string

	// Redis (optional)
	RedisURL string

	// Frontend
	FrontendURL string

	// AI service
	AIServiceURL           string
	AIMockURL              string
	AIModel                string
	AITimeout              time.Duration
	AIMockTimeout          time.Duration
	AIRetryAttempts        int
	AIRetryBackoff         time.Duration
	AICBFailureThreshold   int
	AICBCooldown           time.Duration
	ChatRecentLimit        int
	ChatRateLimitPerMinute int

	// Retrieval
	RetrieverBackend string // "http" | "qdrant" | "none"
	RAGServiceURL    string
	RAGTopK          int
	RAGTimeout       time.Duration
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	EmbeddingURL     string
	EmbeddingAPIKey  string
	EmbeddingModel   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		Env:       getEnvOrDefault("ENV", "development"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		JWTSecret: mustGetEnv("JWT_SECRET"),

		StoreBackend: getEnvOrDefault("STORE_BACKEND", "postgres"),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "./data/pms-assistant.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		FrontendURL:  getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),

		AIServiceURL:           getEnvOrDefault("AI_SERVICE_URL", "http://localhost:8000"),
		AIMockURL:              getEnvOrDefault("AI_MOCK_URL", "http://localhost:8001"),
		AIModel:                getEnvOrDefault("AI_MODEL", "llama3"),
		AITimeout:              getEnvAsDurationOrDefault("AI_TIMEOUT", 30*time.Second),
		AIMockTimeout:          getEnvAsDurationOrDefault("AI_MOCK_TIMEOUT", 5*time.Second),
		AIRetryAttempts:        getEnvAsIntOrDefault("AI_RETRY_ATTEMPTS", 3),
		AIRetryBackoff:         getEnvAsDurationOrDefault("AI_RETRY_BACKOFF", 500*time.Millisecond),
		AICBFailureThreshold:   getEnvAsIntOrDefault("AI_CB_FAILURE_THRESHOLD", 5),
		AICBCooldown:           getEnvAsDurationOrDefault("AI_CB_COOLDOWN", 30*time.Second),
		ChatRecentLimit:        getEnvAsIntOrDefault("CHAT_RECENT_LIMIT", 10),
		ChatRateLimitPerMinute: getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 30),

		RetrieverBackend: getEnvOrDefault("RETRIEVER_BACKEND", "http"),
		RAGTopK:          getEnvAsIntOrDefault("RAG_TOP_K", 3),
		RAGTimeout:       getEnvAsDurationOrDefault("RAG_TIMEOUT", 5*time.Second),
		QdrantHost:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvAsIntOrDefault("QDRANT_PORT", 6334),
		QdrantCollection: getEnvOrDefault("QDRANT_COLLECTION", "pms_documents"),
		EmbeddingURL:     getEnvOrDefault("EMBEDDING_URL", "http://localhost:11434"),
		EmbeddingAPIKey:  os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:   getEnvOrDefault("EMBEDDING_MODEL", "nomic-embed-text"),
	}
	cfg.RAGServiceURL = getEnvOrDefault("RAG_SERVICE_URL", cfg.AIServiceURL)

	if cfg.StoreBackend == "postgres" {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	if cfg.AIRetryAttempts < 1 {
		cfg.AIRetryAttempts = 1
	}

	return cfg
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RequestCeiling bounds a whole chat request: every primary attempt timing out,
// the backoff between them, then the secondary call.
func (c *Config) RequestCeiling() time.Duration {
	attempts := c.AIRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*c.AITimeout +
		time.Duration(attempts-1)*c.AIRetryBackoff +
		c.AIMockTimeout
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("30s") or plain milliseconds ("30000").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
