// Package config provides configuration for the chat backend.
package config

import (
	"os"
	"strconv"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Agent gateway modes.
const (
	AgentModeHTTP   = "http"
	AgentModeOpenAI = "openai"
	AgentModeMock   = "mock"
)

// Config holds the backend configuration.
type Config struct {
	// Server settings
	WSPort   int // External WebSocket port
	HTTPPort int // HTTP API port for /health and /api

	// Store settings
	StoreDriver string // memory (default) or sqlite
	DatabaseURL string

	// Agent gateway settings
	AgentMode     string // http (default), openai or mock
	AgentURL      string
	AgentAPIKey   string
	AgentModel    string
	AgentTimeout  time.Duration
	OpenAIBaseURL string // empty means the go-openai default

	// Auth settings
	AuthSecret string // HS256 secret for bearer tokens; empty disables verification

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		WSPort:         getEnvInt("WS_PORT", 8090),
		HTTPPort:       getEnvInt("HTTP_PORT", 8091),
		StoreDriver:    getEnv("STORE_DRIVER", StoreMemory),
		DatabaseURL:    getEnv("DATABASE_URL", "file:polygloss.db?cache=shared&mode=rwc"),
		AgentMode:      getEnv("AGENT_MODE", AgentModeHTTP),
		AgentURL:       getEnv("AGENT_URL", "http://localhost:8100"),
		AgentAPIKey:    getEnv("AGENT_API_KEY", ""),
		AgentModel:     getEnv("AGENT_MODEL", "gpt-4o-mini"),
		AgentTimeout:   time.Duration(getEnvInt("AGENT_TIMEOUT_MS", 30000)) * time.Millisecond,
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		AuthSecret:     getEnv("AUTH_SECRET", ""),
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
