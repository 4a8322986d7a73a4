package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 8000},
		Database:   DatabaseConfig{URL: "postgres://localhost/tutor"},
		Qdrant:     QdrantConfig{Host: "localhost"},
		Embedding:  EmbeddingConfig{APIKey: "emb-key"},
		Generation: GenerationConfig{APIKey: "gen-key"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database url")
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding api key")
	}

	cfg = validConfig()
	cfg.Generation.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing generation api key")
	}
}

func TestValidate_RetentionShorterThanWindow(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.WindowSec = 7200
	cfg.RateLimit.RetentionSec = 3600

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for retention shorter than window")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.RateLimit.MaxRequests != 10 {
		t.Errorf("rate_limit.max_requests default = %d, want 10", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.WindowSec != 60 {
		t.Errorf("rate_limit.window_sec default = %d, want 60", cfg.RateLimit.WindowSec)
	}
	if cfg.RateLimit.ReclaimIntervalSec != 300 {
		t.Errorf("rate_limit.reclaim_interval_sec default = %d, want 300", cfg.RateLimit.ReclaimIntervalSec)
	}
	if cfg.Qdrant.Collection != "robotics_textbook" {
		t.Errorf("qdrant.collection default = %q", cfg.Qdrant.Collection)
	}
	if cfg.Qdrant.SearchTopK != 5 {
		t.Errorf("qdrant.search_top_k default = %d, want 5", cfg.Qdrant.SearchTopK)
	}
	if cfg.Embedding.Dimensions != 1024 {
		t.Errorf("embedding.dimensions default = %d, want 1024", cfg.Embedding.Dimensions)
	}
}

func TestExpandEnvVars(t *testing.T) {
	if err := os.Setenv("TUTOR_TEST_VAR", "secret"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Unsetenv("TUTOR_TEST_VAR") }()

	got := string(expandEnvVars([]byte("key: ${TUTOR_TEST_VAR}")))
	if got != "key: secret" {
		t.Errorf("unexpected expansion: %q", got)
	}

	got = string(expandEnvVars([]byte("key: ${TUTOR_UNSET_VAR:-fallback}")))
	if got != "key: fallback" {
		t.Errorf("unexpected default expansion: %q", got)
	}
}
