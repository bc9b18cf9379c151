package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/codexray/metasearch/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Search    SearchConfig
	Cache     CacheConfig
	Circuit   CircuitConfig
	Providers []ProviderConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
}

// SearchConfig holds orchestrator tuning.
type SearchConfig struct {
	Concurrency    int
	MaxQueryLength int
}

// CacheConfig holds result cache tuning.
type CacheConfig struct {
	Capacity int
	WebTTL   time.Duration
	NewsTTL  time.Duration
}

// CircuitConfig holds circuit breaker defaults shared by all providers.
type CircuitConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// ProviderConfig is the static per-provider metadata, loaded once at startup
// and read-only thereafter.
type ProviderConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration // outbound HTTP client timeout
	CallTimeout time.Duration // orchestrator per-call deadline
	MaxRetries  int
	RateQuota   int // requests allowed per RateWindow
	RateWindow  time.Duration
	Priority    int // lower is preferred
	Weight      float64
	SearchTypes []models.SearchType
	Enabled     bool
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string
	Environment string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT_SEC", 10) * time.Second,
		},
		Search: SearchConfig{
			Concurrency:    getIntEnv("SEARCH_CONCURRENCY", 3),
			MaxQueryLength: getIntEnv("MAX_QUERY_LENGTH", 500),
		},
		Cache: CacheConfig{
			Capacity: getIntEnv("CACHE_CAPACITY", 128),
			WebTTL:   getDurationEnv("CACHE_WEB_TTL_MIN", 10) * time.Minute,
			NewsTTL:  getDurationEnv("CACHE_NEWS_TTL_MIN", 5) * time.Minute,
		},
		Circuit: CircuitConfig{
			FailureThreshold: getIntEnv("CIRCUIT_FAILURE_THRESHOLD", 5),
			Cooldown:         getDurationEnv("CIRCUIT_COOLDOWN_SEC", 60) * time.Second,
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("ENVIRONMENT", "production"),
		},
	}
	config.Providers = loadProviders()
	config.warnMissingKeys()

	return config, nil
}

func loadProviders() []ProviderConfig {
	webAndNews := []models.SearchType{models.SearchTypeWeb, models.SearchTypeNews}
	webOnly := []models.SearchType{models.SearchTypeWeb}

	serperKey := getEnv("SERPER_API_KEY", "")
	braveKey := getEnv("BRAVE_API_KEY", "")
	tavilyKey := getEnv("TAVILY_API_KEY", "")

	return []ProviderConfig{
		{
			Name:        "serper",
			APIKey:      serperKey,
			BaseURL:     getEnv("SERPER_BASE_URL", ""),
			Timeout:     getDurationEnv("SERPER_TIMEOUT_SEC", 10) * time.Second,
			CallTimeout: getDurationEnv("SERPER_CALL_TIMEOUT_SEC", 12) * time.Second,
			MaxRetries:  getIntEnv("SERPER_MAX_RETRIES", 1),
			RateQuota:   getIntEnv("SERPER_RATE_QUOTA", 50),
			RateWindow:  getDurationEnv("SERPER_RATE_WINDOW_SEC", 60) * time.Second,
			Priority:    1,
			Weight:      1.0,
			SearchTypes: webAndNews,
			Enabled:     serperKey != "",
		},
		{
			Name:        "brave",
			APIKey:      braveKey,
			BaseURL:     getEnv("BRAVE_BASE_URL", ""),
			Timeout:     getDurationEnv("BRAVE_TIMEOUT_SEC", 10) * time.Second,
			CallTimeout: getDurationEnv("BRAVE_CALL_TIMEOUT_SEC", 12) * time.Second,
			MaxRetries:  getIntEnv("BRAVE_MAX_RETRIES", 1),
			RateQuota:   getIntEnv("BRAVE_RATE_QUOTA", 60),
			RateWindow:  getDurationEnv("BRAVE_RATE_WINDOW_SEC", 60) * time.Second,
			Priority:    2,
			Weight:      0.95,
			SearchTypes: webAndNews,
			Enabled:     braveKey != "",
		},
		{
			Name:        "tavily",
			APIKey:      tavilyKey,
			BaseURL:     getEnv("TAVILY_BASE_URL", ""),
			Timeout:     getDurationEnv("TAVILY_TIMEOUT_SEC", 15) * time.Second,
			CallTimeout: getDurationEnv("TAVILY_CALL_TIMEOUT_SEC", 18) * time.Second,
			MaxRetries:  getIntEnv("TAVILY_MAX_RETRIES", 1),
			RateQuota:   getIntEnv("TAVILY_RATE_QUOTA", 30),
			RateWindow:  getDurationEnv("TAVILY_RATE_WINDOW_SEC", 60) * time.Second,
			Priority:    3,
			Weight:      0.9,
			SearchTypes: webOnly,
			Enabled:     tavilyKey != "",
		},
		{
			Name:        "duckduckgo",
			BaseURL:     getEnv("DUCKDUCKGO_BASE_URL", ""),
			Timeout:     getDurationEnv("DUCKDUCKGO_TIMEOUT_SEC", 10) * time.Second,
			CallTimeout: getDurationEnv("DUCKDUCKGO_CALL_TIMEOUT_SEC", 12) * time.Second,
			MaxRetries:  getIntEnv("DUCKDUCKGO_MAX_RETRIES", 1),
			RateQuota:   getIntEnv("DUCKDUCKGO_RATE_QUOTA", 20),
			RateWindow:  getDurationEnv("DUCKDUCKGO_RATE_WINDOW_SEC", 60) * time.Second,
			Priority:    4,
			Weight:      0.7,
			SearchTypes: webOnly,
			Enabled:     getBoolEnv("DUCKDUCKGO_ENABLED", true),
		},
	}
}

// EnabledProviders filters out providers without usable credentials.
func (c *Config) EnabledProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) warnMissingKeys() {
	for _, p := range c.Providers {
		if !p.Enabled {
			log.Printf("WARNING: provider %s disabled (no API key configured)", p.Name)
		}
	}
}

// Helper functions to get environment variables with defaults

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("WARNING: Invalid integer value for %s: %s. Using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("WARNING: Invalid boolean value for %s: %s. Using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return time.Duration(defaultValue)
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("WARNING: Invalid duration value for %s: %s. Using default: %d", key, valueStr, defaultValue)
		return time.Duration(defaultValue)
	}

	return time.Duration(value)
}
