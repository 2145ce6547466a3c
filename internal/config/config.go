// Package config provides environment configuration for the chat client.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/capitalize-ai/modelchat/internal/model"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// Config holds all configuration for the application.
type Config struct {
	// Bridge settings
	BridgeAddr         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// Provider settings
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicVersion string
	GoogleAPIKey     string
	GoogleBaseURL    string
	OllamaBaseURL    string
	DefaultModel     string

	// Conversation store
	StoreBackend  string
	StoreKey      string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	NATSToken     string
	NATSBucket    string
	NATSCAFile    string
	NATSCertFile  string
	NATSKeyFile   string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables, after merging an
// optional .env file from the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Bridge
		BridgeAddr:         getEnv("BRIDGE_ADDR", "127.0.0.1:8787"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 180*time.Second),
		CORSOrigins:        getListEnv("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),

		// Providers
		OpenAIAPIKey:     getProviderEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getProviderEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey:  getProviderEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getProviderEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		AnthropicVersion: getEnv("ANTHROPIC_VERSION", "2023-06-01"),
		GoogleAPIKey:     getProviderEnv("GOOGLE_API_KEY", ""),
		GoogleBaseURL:    getProviderEnv("GOOGLE_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OllamaBaseURL:    getProviderEnv("LOCAL_LLM_URL", "http://localhost:11434"),
		DefaultModel:     getEnv("DEFAULT_MODEL", model.DefaultModel),

		// Store
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		StoreKey:      getEnv("STORE_KEY", "ai-chat-conversations"),
		SQLitePath:    getEnv("SQLITE_PATH", "modelchat.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken:     getEnv("NATS_TOKEN", ""),
		NATSBucket:    getEnv("NATS_BUCKET", "modelchat"),
		NATSCAFile:    getEnv("NATS_CA_FILE", ""),
		NATSCertFile:  getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:   getEnv("NATS_KEY_FILE", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getProviderEnv also accepts the VITE_-prefixed name used by the browser build.
func getProviderEnv(key, defaultValue string) string {
	return getEnv(key, getEnv("VITE_"+key, defaultValue))
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
