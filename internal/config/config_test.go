package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("SCORER", "")
	t.Setenv("MODEL_PATH", "")
	t.Setenv("MODEL_SERVICE_URL", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SQLitePath != "diabepredict.db" {
		t.Fatalf("unexpected sqlite path: %s", cfg.SQLitePath)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h TTL, got %s", cfg.TokenTTL)
	}
	if cfg.Scorer != ScorerHeuristic {
		t.Fatalf("expected heuristic scorer, got %s", cfg.Scorer)
	}
}

func TestLoadRequiresAuthSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when AUTH_SECRET is missing")
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TOKEN_TTL", "tomorrow")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid TOKEN_TTL")
	}
}

func TestLoadScorerRequirements(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SCORER", "artifact")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when MODEL_PATH missing for artifact scorer")
	}

	t.Setenv("MODEL_PATH", "model.json")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("SCORER", "remote")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when MODEL_SERVICE_URL missing for remote scorer")
	}

	t.Setenv("SCORER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown scorer")
	}
}
