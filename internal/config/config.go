package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects the environment knobs the server needs. Values come
// from the process environment; a .env file is loaded by godotenv's
// autoload import in main.
type Config struct {
	Port string

	// Analysis tiers.
	ScoringServiceURL string
	OpenAIAPIKey      string
	GenerativeModel   string
	OpenAIBaseURL     string
	TierTimeout       time.Duration

	// Redis archive queue.
	RedisAddr string
	RedisDB   int

	// Set to use the pgx store; empty runs on the in-memory store.
	PostgresDSN string
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() Config {
	return Config{
		Port:              getEnv("PORT", "8080"),
		ScoringServiceURL: os.Getenv("SCORING_SERVICE_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		GenerativeModel:   getEnv("GENERATIVE_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		TierTimeout:       getEnvDuration("SCORER_TIER_TIMEOUT", 5*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
