package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Scorer selection values for the SCORER variable.
const (
	ScorerHeuristic = "heuristic"
	ScorerArtifact  = "artifact"
	ScorerRemote    = "remote"
)

type Config struct {
	Port            string
	GinMode         string
	DatabaseURL     string // Postgres; empty selects SQLite
	SQLitePath      string
	AuthSecret      string
	TokenTTL        time.Duration
	Scorer          string
	ModelPath       string
	ModelServiceURL string
}

// Load reads configuration from the environment, with a .env file as a
// development convenience.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "release"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      getEnv("SQLITE_PATH", "diabepredict.db"),
		AuthSecret:      os.Getenv("AUTH_SECRET"),
		Scorer:          getEnv("SCORER", ScorerHeuristic),
		ModelPath:       os.Getenv("MODEL_PATH"),
		ModelServiceURL: os.Getenv("MODEL_SERVICE_URL"),
	}

	ttl := getEnv("TOKEN_TTL", "24h")
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", ttl, err)
	}
	cfg.TokenTTL = d

	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}

	switch cfg.Scorer {
	case ScorerHeuristic:
	case ScorerArtifact:
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("MODEL_PATH is required when SCORER=artifact")
		}
	case ScorerRemote:
		if cfg.ModelServiceURL == "" {
			return nil, fmt.Errorf("MODEL_SERVICE_URL is required when SCORER=remote")
		}
	default:
		return nil, fmt.Errorf("unknown SCORER %q", cfg.Scorer)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
