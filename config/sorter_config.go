package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	RedisURL    string

	// IMAP
	IMAPHost        string
	IMAPPort        int
	IMAPUsername    string
	IMAPPassword    string
	IMAPUseSSL      bool
	IMAPInbox       string
	ProcessOnlySeen bool
	SinceDays       int
	FetchBatchSize  int

	// Mailbox tags
	ProtectedTag string
	ProcessedTag string
	AITagPrefix  string

	// LLM host (OpenAI-compatible, e.g. Ollama)
	LLMBaseURL     string
	LLMAPIKey      string
	ClassifierModel string
	EmbedModel     string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Prompt sizing
	ContextWindowTokens int
	ReservedTokens      int
	BodySnippetChars    int
	CatalogPathFloor    int
	EmbedPromptMaxChars int

	// Classification thresholds (0-100 rating scale)
	MatchThreshold  float64
	CreateThreshold float64
	AutoThreshold   float64
	MaxSuggestions  int

	// Pipeline
	MoveMode       string
	AnalysisModule string
	PollInterval   time.Duration

	// Tag-slot placeholder markers the model must have replaced
	PlaceholderTokens []string

	// Cache
	OverviewCacheTTL time.Duration

	// Suggestions API
	PendingListLimit int
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		IMAPHost:        getEnv("IMAP_HOST", "localhost"),
		IMAPPort:        getEnvInt("IMAP_PORT", 993),
		IMAPUsername:    getEnv("IMAP_USERNAME", ""),
		IMAPPassword:    getEnv("IMAP_PASSWORD", ""),
		IMAPUseSSL:      getEnvBool("IMAP_USE_SSL", true),
		IMAPInbox:       getEnv("IMAP_INBOX", "INBOX"),
		ProcessOnlySeen: getEnvBool("PROCESS_ONLY_SEEN", false),
		SinceDays:       getEnvInt("SINCE_DAYS", 30),
		FetchBatchSize:  getEnvInt("FETCH_BATCH_SIZE", 100),

		ProtectedTag: getEnv("IMAP_PROTECTED_TAG", ""),
		ProcessedTag: getEnv("IMAP_PROCESSED_TAG", ""),
		AITagPrefix:  getEnv("IMAP_AI_TAG_PREFIX", "SmartSorter"),

		LLMBaseURL:      getEnv("LLM_BASE_URL", "http://ollama:11434/v1"),
		LLMAPIKey:       getEnv("LLM_API_KEY", "ollama"),
		ClassifierModel: getEnv("CLASSIFIER_MODEL", "llama3"),
		EmbedModel:      getEnv("EMBED_MODEL", "nomic-embed-text"),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:   getEnvInt("LLM_TIMEOUT_SEC", 120),

		ContextWindowTokens: getEnvInt("CONTEXT_WINDOW_TOKENS", 8192),
		ReservedTokens:      getEnvInt("RESERVED_TOKENS", 512),
		BodySnippetChars:    getEnvInt("BODY_SNIPPET_CHARS", 1200),
		CatalogPathFloor:    getEnvInt("CATALOG_PATH_FLOOR", 20),
		EmbedPromptMaxChars: getEnvInt("EMBED_PROMPT_MAX_CHARS", 8000),

		MatchThreshold:  getEnvFloat("MATCH_THRESHOLD", 50),
		CreateThreshold: getEnvFloat("CREATE_THRESHOLD", 78),
		AutoThreshold:   getEnvFloat("AUTO_THRESHOLD", 92),
		MaxSuggestions:  getEnvInt("MAX_SUGGESTIONS", 3),

		MoveMode:       getEnv("MOVE_MODE", "CONFIRM"),
		AnalysisModule: getEnv("ANALYSIS_MODULE", "full"),
		PollInterval:   time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)) * time.Second,

		PlaceholderTokens: getEnvSlice("PLACEHOLDER_TOKENS", []string{"NAME", "YYYY", "TODO", "XXX", "DATE"}),

		OverviewCacheTTL: time.Duration(getEnvInt("OVERVIEW_CACHE_TTL_SEC", 60)) * time.Second,

		PendingListLimit: getEnvInt("PENDING_LIST_LIMIT", 25),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
