package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FORECAST_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":50051" || cfg.Pipeline.UnknownCategoryCode != -1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache should be disabled by default")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `server:
  address: ":6000"
  gracefulTimeout: 3s
model:
  kind: remote
  endpoint: http://scorer:9000
pipeline:
  strictCategories: true
cache:
  enabled: true
  backend: memory
`)
	t.Setenv("FORECAST_SERVER_HTTP_ADDRESS", ":9090")
	t.Setenv("FORECAST_LOGGING_LEVEL", "debug")
	t.Setenv("FORECAST_CACHE_BATCH_TTL", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":6000" || cfg.Server.GracefulTimeout != 3*time.Second {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.Server.HTTPAddress != ":9090" {
		t.Fatalf("env override not applied: %q", cfg.Server.HTTPAddress)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Cache.BatchTTL != 30*time.Second {
		t.Fatalf("expected 30s batch ttl, got %s", cfg.Cache.BatchTTL)
	}
	if !cfg.Pipeline.StrictCategories || cfg.Model.Kind != "remote" {
		t.Fatalf("unexpected pipeline/model config: %+v %+v", cfg.Pipeline, cfg.Model)
	}
	if cfg.Model.Timeout != 5*time.Second {
		t.Fatalf("default model timeout lost: %s", cfg.Model.Timeout)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"model kind":      "model:\n  kind: forest\n",
		"remote endpoint": "model:\n  kind: remote\n",
		"redis addr":      "cache:\n  enabled: true\n  backend: redis\n",
		"log level":       "logging:\n  level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("FORECAST_CONFIG", "")
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("ADDRESS", ":1")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Path != "configs/model/linear.yaml" || cfg.Server.Address != ":50051" {
		t.Fatalf("unprefixed variables leaked into config: %+v %+v", cfg.Model, cfg.Server)
	}
}
