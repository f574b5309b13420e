package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"finresearch/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	LLM         LLMConfig
	Retrieval   RetrievalConfig
	Web         WebConfig
	Market      MarketConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Profiling   ProfilingConfig
	CatalogFile string
	PromptsDir  string
}

// LLMConfig holds text-generation settings for both profiles
type LLMConfig struct {
	Provider     string // groq | openai | gemini
	APIKey       string
	BaseURL      string
	GeminiAPIKey string
	Smart        ProfileConfig
	Fast         ProfileConfig
	MaxRetries   int
	Timeout      time.Duration
}

// ProfileConfig is one model profile (fast or smart)
type ProfileConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// RetrievalConfig holds embedding and vector index settings
type RetrievalConfig struct {
	CohereAPIKey      string
	CohereBaseURL     string
	EmbedModel        string
	PineconeAPIKey    string
	PineconeIndexHost string
	Namespace         string
	TopK              int
	CacheSize         int
}

// WebConfig holds web-search settings
type WebConfig struct {
	TavilyAPIKey string
	BaseURL      string
	MaxResults   int
	Topic        string
	Depth        string
}

// MarketConfig holds market-data settings
type MarketConfig struct {
	BaseURL    string
	SourceName string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port       string
	GinMode    string
	CORSOrigin string
}

// DatabaseConfig holds the optional archive database connection
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// StorageConfig holds file archive settings used without a database
type StorageConfig struct {
	RunsDir string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		LLM:         *loadLLMConfig(),
		Retrieval:   *loadRetrievalConfig(),
		Web:         *loadWebConfig(),
		Market:      *loadMarketConfig(),
		Server:      *loadServerConfig(),
		Database:    DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")},
		Storage:     StorageConfig{RunsDir: getEnvOrDefault("RUNS_DIR", "./runs")},
		Profiling:   *loadProfilingConfig(),
		CatalogFile: getEnvOrDefault("CATALOG_FILE", ""),
		PromptsDir:  getEnvOrDefault("PROMPTS_DIR", ""),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadLLMConfig() *LLMConfig {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "groq"))

	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		switch provider {
		case "groq":
			apiKey = os.Getenv("GROQ_API_KEY")
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	baseURL := "https://api.groq.com/openai/v1"
	if provider == "openai" {
		baseURL = "https://api.openai.com/v1"
	}

	return &LLMConfig{
		Provider:     provider,
		APIKey:       apiKey,
		BaseURL:      getEnvOrDefault("LLM_BASE_URL", baseURL),
		GeminiAPIKey: getEnvOrDefault("GEMINI_API_KEY", ""),
		Smart: ProfileConfig{
			Model:       getEnvOrDefault("LLM_SMART_MODEL", defaultSmartModel(provider)),
			Temperature: getEnvFloatOrDefault("LLM_SMART_TEMPERATURE", 0.2),
			MaxTokens:   getEnvIntOrDefault("LLM_SMART_MAX_TOKENS", 2048),
		},
		Fast: ProfileConfig{
			Model:       getEnvOrDefault("LLM_FAST_MODEL", defaultFastModel(provider)),
			Temperature: getEnvFloatOrDefault("LLM_FAST_TEMPERATURE", 0.1),
			MaxTokens:   getEnvIntOrDefault("LLM_FAST_MAX_TOKENS", 1024),
		},
		MaxRetries: getEnvIntOrDefault("LLM_MAX_RETRIES", 2),
		Timeout:    getEnvDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
	}
}

func defaultSmartModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-pro"
	case "openai":
		return "gpt-4o"
	default:
		return "openai/gpt-oss-120b"
	}
}

func defaultFastModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-flash"
	case "openai":
		return "gpt-4o-mini"
	default:
		return "llama-3.3-70b-versatile"
	}
}

func loadRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		CohereAPIKey:      getEnvOrDefault("COHERE_API_KEY", ""),
		CohereBaseURL:     getEnvOrDefault("COHERE_BASE_URL", "https://api.cohere.com"),
		EmbedModel:        getEnvOrDefault("COHERE_EMBED_MODEL", "embed-english-v3.0"),
		PineconeAPIKey:    getEnvOrDefault("PINECONE_API_KEY", ""),
		PineconeIndexHost: getEnvOrDefault("PINECONE_INDEX_HOST", ""),
		Namespace:         getEnvOrDefault("PINECONE_NAMESPACE", ""),
		TopK:              getEnvIntOrDefault("RETRIEVAL_TOP_K", 3),
		CacheSize:         getEnvIntOrDefault("EMBED_CACHE_SIZE", 512),
	}
}

func loadWebConfig() *WebConfig {
	return &WebConfig{
		TavilyAPIKey: getEnvOrDefault("TAVILY_API_KEY", ""),
		BaseURL:      getEnvOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),
		MaxResults:   getEnvIntOrDefault("WEB_MAX_RESULTS", 5),
		Topic:        getEnvOrDefault("WEB_TOPIC", "news"),
		Depth:        getEnvOrDefault("WEB_SEARCH_DEPTH", "basic"),
	}
}

func loadMarketConfig() *MarketConfig {
	return &MarketConfig{
		BaseURL:    getEnvOrDefault("MARKET_BASE_URL", "https://query1.finance.yahoo.com"),
		SourceName: getEnvOrDefault("MARKET_SOURCE_NAME", "Yahoo Finance"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:       getEnvOrDefault("PORT", "3000"),
		GinMode:    getEnvOrDefault("GIN_MODE", "debug"),
		CORSOrigin: getEnvOrDefault("CORS_ORIGIN", "*"),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	switch config.LLM.Provider {
	case "groq", "openai":
		if config.LLM.APIKey == "" {
			return errors.ConfigInvalid("LLM_API_KEY (or GROQ_API_KEY/OPENAI_API_KEY) is required")
		}
	case "gemini":
		if config.LLM.GeminiAPIKey == "" {
			return errors.ConfigInvalid("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return errors.ConfigInvalid("unknown LLM_PROVIDER " + strconv.Quote(config.LLM.Provider))
	}
	if config.Retrieval.TopK <= 0 {
		return errors.ConfigInvalid("RETRIEVAL_TOP_K must be positive")
	}
	if config.Web.MaxResults <= 0 {
		return errors.ConfigInvalid("WEB_MAX_RESULTS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
