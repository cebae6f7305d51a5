// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the campaign service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// OpenAI (embeddings + reasoning)
	OpenAIAPIKey       string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string

	// Adzuna job board credentials (the "api" source)
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string // e.g. "fr", "gb", "us"

	// RSS feed URLs polled by the "rss" source
	RSSFeeds []string

	// Rendering service (structured document → PDF)
	RendererURL string

	// SMTP transport
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Pipeline tuning
	DiscoveryIntervalMinutes int
	AnalysisWorkers          int
	GenerationWorkers        int
	DispatchWorkers          int
	ProviderConcurrency      int // max in-flight OpenAI calls
}

// Load reads environment variables and returns a validated Config.
// An optional .env file is loaded first when envFile is non-empty.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("CAMPAIGN_PORT")
	if port == "" {
		port = "8083"
	}

	country := os.Getenv("ADZUNA_COUNTRY")
	if country == "" {
		country = "fr"
	}

	interval, err := envInt("DISCOVERY_INTERVAL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	if interval < 1 {
		return nil, fmt.Errorf("DISCOVERY_INTERVAL_MINUTES must be a positive integer, got %d", interval)
	}

	analysisWorkers, err := envInt("ANALYSIS_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	generationWorkers, err := envInt("GENERATION_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	dispatchWorkers, err := envInt("DISPATCH_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	providerConcurrency, err := envInt("PROVIDER_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	embeddingDim, err := envInt("OPENAI_EMBEDDING_DIMENSION", 1536)
	if err != nil {
		return nil, err
	}

	smtpPort, err := envInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        port,
		DatabaseURL: dbURL,
		RedisURL:    redisURL,

		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:     envString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: embeddingDim,
		LLMModel:           envString("OPENAI_LLM_MODEL", "gpt-4o-mini"),

		AdzunaAppID:   os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:  os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry: country,

		RSSFeeds: splitList(os.Getenv("RSS_FEEDS")),

		RendererURL: envString("RENDERER_URL", "http://renderer:3000"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: smtpPort,
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: envString("SMTP_FROM", "noreply@jobmate.app"),

		DiscoveryIntervalMinutes: interval,
		AnalysisWorkers:          analysisWorkers,
		GenerationWorkers:        generationWorkers,
		DispatchWorkers:          dispatchWorkers,
		ProviderConcurrency:      providerConcurrency,
	}, nil
}

// splitList parses a comma-separated env value into a slice.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return v, nil
}
