package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.BlobRoot != "" {
		t.Fatalf("expected empty blob root, got %q", cfg.BlobRoot)
	}
	if cfg.MaxVersionBytes != DefaultMaxVersionBytes {
		t.Fatalf("expected max version bytes %d, got %d", DefaultMaxVersionBytes, cfg.MaxVersionBytes)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Quota.MaxSizeBytes != DefaultQuotaMaxSizeBytes {
		t.Fatalf("expected quota max default %d, got %d", DefaultQuotaMaxSizeBytes, cfg.Quota.MaxSizeBytes)
	}
	if cfg.Quota.HeadroomBytes != DefaultQuotaHeadroomBytes {
		t.Fatalf("expected quota headroom default %d, got %d", DefaultQuotaHeadroomBytes, cfg.Quota.HeadroomBytes)
	}
	if cfg.Quota.MaxDepth != DefaultQuotaMaxDepth {
		t.Fatalf("expected quota depth default %d, got %d", DefaultQuotaMaxDepth, cfg.Quota.MaxDepth)
	}
	if !cfg.Quota.Enabled {
		t.Fatal("expected quota enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigName)
	if err := os.WriteFile(path, []byte(`db_path = "/data/verso.db"
blob_root = "/data/blobs"
log_level = "debug"

[quota]
max_size_bytes = 5000
headroom_bytes = 500
max_depth = 10
enabled = false
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/data/verso.db" {
		t.Fatalf("expected db_path '/data/verso.db', got %q", cfg.DBPath)
	}
	if cfg.BlobRoot != "/data/blobs" {
		t.Fatalf("expected blob_root '/data/blobs', got %q", cfg.BlobRoot)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level 'debug', got %q", cfg.LogLevel)
	}
	if cfg.Quota.MaxSizeBytes != 5000 || cfg.Quota.HeadroomBytes != 500 || cfg.Quota.MaxDepth != 10 {
		t.Fatalf("quota section not applied: %+v", cfg.Quota)
	}
	if cfg.Quota.Enabled {
		t.Fatal("expected quota disabled from file")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.verso.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Quota.MaxSizeBytes != DefaultQuotaMaxSizeBytes {
		t.Fatal("defaults should be preserved")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	t.Setenv(dbPathEnvKey, "/env/verso.db")
	t.Setenv(blobRootEnvKey, "/env/blobs")
	t.Setenv(logLevelEnvKey, "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/env/verso.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.BlobRoot != "/env/blobs" {
		t.Fatalf("expected env blob root, got %q", cfg.BlobRoot)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
}

func TestLoadNormalizesInvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	path := filepath.Join(dir, DefaultConfigName)
	if err := os.WriteFile(path, []byte(`max_version_bytes = -5

[quota]
max_size_bytes = 1000
headroom_bytes = 2000
max_depth = 0
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxVersionBytes != DefaultMaxVersionBytes {
		t.Fatalf("expected normalized max version bytes, got %d", cfg.MaxVersionBytes)
	}
	if cfg.Quota.HeadroomBytes != cfg.Quota.MaxSizeBytes {
		t.Fatalf("expected headroom capped at max, got %d", cfg.Quota.HeadroomBytes)
	}
	if cfg.Quota.MaxDepth != DefaultQuotaMaxDepth {
		t.Fatalf("expected normalized depth, got %d", cfg.Quota.MaxDepth)
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range AllowedKeys() {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("nope") {
		t.Fatal("expected 'nope' to be rejected")
	}
	if IsAllowedKey("quota.nope") {
		t.Fatal("expected 'quota.nope' to be rejected")
	}
}

func TestGet(t *testing.T) {
	cfg := Default()
	cfg.DBPath = "/data/verso.db"

	got, err := cfg.Get("db_path")
	if err != nil {
		t.Fatalf("get db_path: %v", err)
	}
	if got != "/data/verso.db" {
		t.Fatalf("expected '/data/verso.db', got %q", got)
	}

	got, err = cfg.Get("quota.enabled")
	if err != nil {
		t.Fatalf("get quota.enabled: %v", err)
	}
	if got != "true" {
		t.Fatalf("expected 'true', got %q", got)
	}

	if _, err := cfg.Get("nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigName)

	if err := SetKey(path, "quota.max_depth", "15"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetKey(path, "log_level", "debug"); err != nil {
		t.Fatalf("set second key: %v", err)
	}

	var data map[string]any
	if _, err := toml.DecodeFile(path, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	quota, ok := data["quota"].(map[string]any)
	if !ok {
		t.Fatalf("expected quota table, got %+v", data)
	}
	if quota["max_depth"] != int64(15) {
		t.Fatalf("expected max_depth 15, got %v", quota["max_depth"])
	}
	if data["log_level"] != "debug" {
		t.Fatalf("expected log_level 'debug', got %v", data["log_level"])
	}
}

func TestSetKeyValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigName)

	if err := SetKey(path, "unknown_key", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if err := SetKey(path, "quota.max_size_bytes", "-1"); err == nil {
		t.Fatal("expected error for negative quota max")
	}
	if err := SetKey(path, "quota.enabled", "maybe"); err == nil {
		t.Fatal("expected error for non-boolean enabled")
	}
}
