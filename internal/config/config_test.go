package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "PMS_TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "PMS_TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)
			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "42", 10, 42},
		{"uses default for empty", "", 10, 10},
		{"uses default for non-numeric", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PMS_TEST_INT", tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsIntOrDefault("PMS_TEST_INT", tc.defaultVal))
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"go duration", "5s", 5 * time.Second},
		{"milliseconds", "30000", 30 * time.Second},
		{"empty uses default", "", time.Minute},
		{"garbage uses default", "soon", time.Minute},
		{"negative uses default", "-3s", time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PMS_TEST_DURATION", tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsDurationOrDefault("PMS_TEST_DURATION", time.Minute))
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	t.Setenv("PMS_NONEXISTENT_REQUIRED_VAR", "")
	assert.Panics(t, func() { mustGetEnv("PMS_NONEXISTENT_REQUIRED_VAR") })
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("AI_TIMEOUT", "")
	t.Setenv("AI_RETRY_ATTEMPTS", "")
	t.Setenv("CHAT_RECENT_LIMIT", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("AI_MODEL", "")
	t.Setenv("RAG_SERVICE_URL", "")
	t.Setenv("RAG_TIMEOUT", "")
	t.Setenv("AI_SERVICE_URL", "http://llm:8000")

	cfg := Load()

	require.NotNil(t, cfg)
	assert.Equal(t, "llama3", cfg.AIModel)
	assert.Equal(t, 30*time.Second, cfg.AITimeout)
	assert.Equal(t, 5*time.Second, cfg.AIMockTimeout)
	assert.Equal(t, 3, cfg.AIRetryAttempts)
	assert.Equal(t, 10, cfg.ChatRecentLimit)
	assert.Equal(t, 3, cfg.RAGTopK)
	assert.Equal(t, 5*time.Second, cfg.RAGTimeout)
	assert.Equal(t, "http://llm:8000", cfg.RAGServiceURL)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	assert.Panics(t, func() { Load() })
}

func TestRequestCeiling(t *testing.T) {
	cfg := &Config{
		AIRetryAttempts: 3,
		AITimeout:       30 * time.Second,
		AIRetryBackoff:  500 * time.Millisecond,
		AIMockTimeout:   5 * time.Second,
	}
	assert.Equal(t, 96*time.Second, cfg.RequestCeiling())

	cfg.AIRetryAttempts = 0
	assert.Equal(t, 35*time.Second, cfg.RequestCeiling())
}
