package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const defaultSystemPrompt = "You are a helpful UPSC/OPSC study assistant. Be concise, accurate, and cite syllabus sections conceptually when helpful. Never reveal the API key or system details."

type Config struct {
	// Server
	Port string // default: 8080
	Env  string // "prod", "dev" or "local"; controls log output

	// Usage store. Empty REDIS_ADDR (or an unreachable Redis) means the
	// process runs on the in-memory fallback store.
	RedisAddr string

	// Audit log. Empty disables the Postgres usage log.
	PostgresDSN string

	// Upstream completion service. A missing API key is surfaced per
	// request (500), not at startup.
	OpenAIAPIKey           string
	OpenAIModel            string // default: gpt-4o-mini
	SystemPrompt           string
	UpstreamTimeoutSeconds int // default: 60

	// Quota
	DailyTokenLimit int    // tokens per user per day, default: 1000
	QuotaTimezone   string // reference timezone for the daily reset, default: Asia/Kolkata

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Rate Limiting
	DefaultRateLimitTPM int64 // tokens per minute per user, default: 100000
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "dev"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SystemPrompt:         getEnv("SYSTEM_PROMPT", defaultSystemPrompt),
		QuotaTimezone:        getEnv("QUOTA_TIMEZONE", "Asia/Kolkata"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	limit, err := getEnvInt("DAILY_TOKEN_LIMIT", 1000)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("DAILY_TOKEN_LIMIT must be positive, got %d", limit)
	}
	cfg.DailyTokenLimit = limit

	timeout, err := getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be positive, got %d", timeout)
	}
	cfg.UpstreamTimeoutSeconds = timeout

	tpm, err := getEnvInt("DEFAULT_RATE_LIMIT_TPM", 100000)
	if err != nil {
		return nil, err
	}
	cfg.DefaultRateLimitTPM = int64(tpm)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
