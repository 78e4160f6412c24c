package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type RecommendConfig struct {
	BaseURL         string
	ListPath        string
	SearchPath      string
	Timeout         time.Duration
	CacheTTL        time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type PlannerConfig struct {
	Keywords      []string
	TodayPickSize int
	PageSize      int
	BlockedWords  []string
	SearchPerMin  int
}

type ObservabilityConfig struct {
	ServiceName  string
	MetricsAddr  string
	PprofAddr    string
	OTLPEndpoint string
	LogLevel     string
}

type Config struct {
	ServerPort    string
	Recommend     RecommendConfig
	Gemini        GeminiConfig
	Session       SessionConfig
	Planner       PlannerConfig
	Observability ObservabilityConfig
}

func Load() (*Config, error) {
	breakerFailures := getIntOrDefault("RECOMMEND_BREAKER_FAILURES", 5)
	if breakerFailures <= 0 {
		return nil, fmt.Errorf("RECOMMEND_BREAKER_FAILURES must be positive, got %d", breakerFailures)
	}

	cfg := &Config{
		ServerPort: getEnvOrDefault("SERVER_PORT", "8091"),
		Recommend: RecommendConfig{
			BaseURL:         strings.TrimRight(getEnvOrDefault("RECOMMEND_BASE_URL", "http://localhost:8080"), "/"),
			ListPath:        getEnvOrDefault("RECOMMEND_LIST_PATH", "/api/getList"),
			SearchPath:      getEnvOrDefault("RECOMMEND_SEARCH_PATH", "/api/llm-recommend"),
			Timeout:         getDurationOrDefault("RECOMMEND_TIMEOUT", 30*time.Second),
			CacheTTL:        getDurationOrDefault("RECOMMEND_CACHE_TTL", 5*time.Minute),
			BreakerFailures: uint32(breakerFailures),
			BreakerOpenFor:  getDurationOrDefault("RECOMMEND_BREAKER_OPEN_FOR", 30*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Session: SessionConfig{
			Secret:     os.Getenv("SESSION_SECRET"),
			CookieName: getEnvOrDefault("SESSION_COOKIE", "planner_mount"),
			TTL:        getDurationOrDefault("SESSION_TTL", 30*time.Minute),
			Secure:     getEnvOrDefault("SESSION_SECURE", "false") == "true",
		},
		Planner: PlannerConfig{
			Keywords:      getListOrDefault("PLANNER_KEYWORDS", []string{"맛집", "관광지", "쇼핑"}),
			TodayPickSize: getIntOrDefault("PLANNER_TODAY_PICK_SIZE", 7),
			PageSize:      getIntOrDefault("PLANNER_PAGE_SIZE", 20),
			BlockedWords:  getListOrDefault("PLANNER_BLOCKED_WORDS", nil),
			SearchPerMin:  getIntOrDefault("PLANNER_SEARCH_PER_MINUTE", 20),
		},
		Observability: ObservabilityConfig{
			ServiceName:  getEnvOrDefault("SERVICE_NAME", "loci-planner"),
			MetricsAddr:  getEnvOrDefault("METRICS_ADDR", ":9092"),
			PprofAddr:    getEnvOrDefault("PPROF_ADDR", ":6060"),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
			LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	if len(cfg.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	if cfg.Planner.TodayPickSize <= 0 {
		return nil, fmt.Errorf("PLANNER_TODAY_PICK_SIZE must be positive, got %d", cfg.Planner.TodayPickSize)
	}
	if cfg.Planner.PageSize <= 0 {
		return nil, fmt.Errorf("PLANNER_PAGE_SIZE must be positive, got %d", cfg.Planner.PageSize)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getListOrDefault splits a comma separated variable, dropping blanks.
func getListOrDefault(key string, defaultValue []string) []string {
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
