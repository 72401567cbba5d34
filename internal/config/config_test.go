package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected default driver postgres, got %s", cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %d / %d", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Matcher.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Matcher.Dim)
	}
	if cfg.Matcher.Threshold != 0.95 {
		t.Errorf("expected default threshold 0.95, got %f", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.Index != "scan" {
		t.Errorf("expected default index scan, got %s", cfg.Matcher.Index)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("EMBEDDING_DIM", "128")
	t.Setenv("MATCH_THRESHOLD", "0.8")
	t.Setenv("MATCH_INDEX", "hnsw")
	t.Setenv("WEB_PORT", "9090")

	cfg := Load()
	if cfg.Database.Driver != "mysql" {
		t.Errorf("expected mysql, got %s", cfg.Database.Driver)
	}
	if cfg.Matcher.Dim != 128 {
		t.Errorf("expected dim 128, got %d", cfg.Matcher.Dim)
	}
	if cfg.Matcher.Threshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %f", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.Index != "hnsw" {
		t.Errorf("expected hnsw, got %s", cfg.Matcher.Index)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	t.Setenv("MATCH_THRESHOLD", "1.5")

	cfg := Load()
	if cfg.Matcher.Dim != 512 {
		t.Errorf("invalid EMBEDDING_DIM must fall back to 512, got %d", cfg.Matcher.Dim)
	}
	if cfg.Matcher.Threshold != 0.95 {
		t.Errorf("out-of-range MATCH_THRESHOLD must fall back to 0.95, got %f", cfg.Matcher.Threshold)
	}
}

func TestLoad_EmbeddedTrialKeys(t *testing.T) {
	cfg := Load()
	if !cfg.Trial.IsValidKey("SAT-TRIAL-2025-CLIENT-TEST") {
		t.Error("embedded trial key must be on the allow-list")
	}
	if cfg.Trial.IsValidKey("SAT-TRIAL-2025-UNKNOWN") {
		t.Error("unknown keys must not validate")
	}
}

func TestLoad_TrialKeysFromEnv(t *testing.T) {
	t.Setenv("TRIAL_KEYS", "KEY-ONE, KEY-TWO ,")

	cfg := Load()
	if !cfg.Trial.IsValidKey("KEY-ONE") || !cfg.Trial.IsValidKey("KEY-TWO") {
		t.Error("TRIAL_KEYS entries must extend the allow-list")
	}
	if !cfg.Trial.IsValidKey("SAT-TRIAL-2025-CLIENT-TEST") {
		t.Error("env keys must not replace the embedded allow-list")
	}
}
