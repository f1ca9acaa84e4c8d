package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDBFileName  = ".verso.db"
	DefaultBlobDirName = ".verso-blobs"
	DefaultConfigName  = ".verso.toml"
	DefaultLogLevel    = "warn"

	DefaultMaxVersionBytes int64 = 500 * 1024 * 1024

	DefaultQuotaMaxSizeBytes  int64 = 10 * 1024 * 1024 * 1024
	DefaultQuotaHeadroomBytes int64 = 1024 * 1024 * 1024
	DefaultQuotaMaxDepth      int64 = 30
	DefaultQuotaEnabled             = true

	configDirEnvKey = "VERSO_CONFIG_DIR"
	dbPathEnvKey    = "VERSO_DB"
	blobRootEnvKey  = "VERSO_BLOB_ROOT"
	logLevelEnvKey  = "VERSO_LOG_LEVEL"
)

// QuotaConfig seeds the platform-wide default quota row on first run.
type QuotaConfig struct {
	MaxSizeBytes  int64 `toml:"max_size_bytes"`
	HeadroomBytes int64 `toml:"headroom_bytes"`
	MaxDepth      int64 `toml:"max_depth"`
	Enabled       bool  `toml:"enabled"`
}

// Config defines runtime configuration for verso.
type Config struct {
	DBPath          string      `toml:"db_path"`
	BlobRoot        string      `toml:"blob_root"`
	MaxVersionBytes int64       `toml:"max_version_bytes"`
	LogLevel        string      `toml:"log_level"`
	Quota           QuotaConfig `toml:"quota"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		DBPath:          "",
		BlobRoot:        "",
		MaxVersionBytes: DefaultMaxVersionBytes,
		LogLevel:        DefaultLogLevel,
		Quota: QuotaConfig{
			MaxSizeBytes:  DefaultQuotaMaxSizeBytes,
			HeadroomBytes: DefaultQuotaHeadroomBytes,
			MaxDepth:      DefaultQuotaMaxDepth,
			Enabled:       DefaultQuotaEnabled,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, DefaultConfigName), true
}

var allowedKeys = []string{
	"db_path",
	"blob_root",
	"max_version_bytes",
	"log_level",
	"quota.max_size_bytes",
	"quota.headroom_bytes",
	"quota.max_depth",
	"quota.enabled",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "blob_root":
		return c.BlobRoot, nil
	case "max_version_bytes":
		return strconv.FormatInt(c.MaxVersionBytes, 10), nil
	case "log_level":
		return c.LogLevel, nil
	case "quota.max_size_bytes":
		return strconv.FormatInt(c.Quota.MaxSizeBytes, 10), nil
	case "quota.headroom_bytes":
		return strconv.FormatInt(c.Quota.HeadroomBytes, 10), nil
	case "quota.max_depth":
		return strconv.FormatInt(c.Quota.MaxDepth, 10), nil
	case "quota.enabled":
		return strconv.FormatBool(c.Quota.Enabled), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from the global file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if blobRoot := os.Getenv(blobRootEnvKey); blobRoot != "" {
		cfg.BlobRoot = blobRoot
	}
	if level := strings.TrimSpace(os.Getenv(logLevelEnvKey)); level != "" {
		cfg.LogLevel = level
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.BlobRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.BlobRoot = filepath.Join(cwd, DefaultBlobDirName)
		}
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "max_version_bytes", "quota.max_size_bytes", "quota.max_depth":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "quota.headroom_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "quota.enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if c.MaxVersionBytes <= 0 {
		c.MaxVersionBytes = DefaultMaxVersionBytes
	}
	if c.Quota.MaxSizeBytes <= 0 {
		c.Quota.MaxSizeBytes = DefaultQuotaMaxSizeBytes
	}
	if c.Quota.HeadroomBytes < 0 {
		c.Quota.HeadroomBytes = DefaultQuotaHeadroomBytes
	}
	if c.Quota.HeadroomBytes > c.Quota.MaxSizeBytes {
		c.Quota.HeadroomBytes = c.Quota.MaxSizeBytes
	}
	if c.Quota.MaxDepth <= 0 {
		c.Quota.MaxDepth = DefaultQuotaMaxDepth
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
}
