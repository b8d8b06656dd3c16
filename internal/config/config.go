// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/costlens/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete costlens configuration.
type Config struct {
	// DataDir is the root for cache entries, the usage ledger, and the
	// keystore. Default: ~/.costlens
	DataDir string `toml:"data_dir"`

	Cache  CacheConfig  `toml:"cache"`
	Budget BudgetConfig `toml:"budget"`
	API    APIConfig    `toml:"api"`
	Report ReportConfig `toml:"report"`
}

// CacheConfig controls the durable response cache.
type CacheConfig struct {
	// TTLHours is the entry time-to-live; 0 disables expiry.
	TTLHours int `toml:"ttl_hours"`
	// MaxEntries bounds the entry count; 0 means unbounded.
	MaxEntries int `toml:"max_entries"`
}

// BudgetConfig controls the cost-control layer.
type BudgetConfig struct {
	RequestsPerMinute    int     `toml:"requests_per_minute"`
	MaxConcurrent        int     `toml:"max_concurrent_requests"`
	DailyCostLimitUSD    float64 `toml:"daily_cost_limit_usd"`
	EstimatedCostPerCall float64 `toml:"estimated_cost_per_call_usd"`
	MaxRetries           int     `toml:"max_retries"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
}

// APIConfig configures the hosted analysis model.
type APIConfig struct {
	BaseURL             string  `toml:"base_url"`
	Model               string  `toml:"model"`
	MaxTokens           int     `toml:"max_tokens"`
	InputPricePerToken  float64 `toml:"input_price_per_token_usd"`
	OutputPricePerToken float64 `toml:"output_price_per_token_usd"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// =============================================================================
// DEFAULTS / LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".costlens")
	return &Config{
		DataDir: dataDir,
		Cache: CacheConfig{
			TTLHours:   24,
			MaxEntries: 1000,
		},
		Budget: BudgetConfig{
			RequestsPerMinute:    30,
			MaxConcurrent:        1,
			DailyCostLimitUSD:    25.0,
			EstimatedCostPerCall: 0.15,
			MaxRetries:           1,
			TimeoutSeconds:       60,
		},
		API: APIConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-3-5-sonnet-20241022",
			MaxTokens: 4000,
			// Sonnet-class pricing per token.
			InputPricePerToken:  3.0 / 1_000_000,
			OutputPricePerToken: 15.0 / 1_000_000,
		},
		Report: ReportConfig{
			OutputDir: filepath.Join(dataDir, "reports"),
		},
	}
}

// DefaultPath returns the config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".costlens", "config.toml")
}

// Load reads the config from path (DefaultPath if empty), applies
// environment overrides, and validates. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps COSTLENS_* environment variables onto the
// config for containerized runs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COSTLENS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("COSTLENS_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("COSTLENS_MODEL"); v != "" {
		cfg.API.Model = v
	}
	if v := os.Getenv("COSTLENS_DAILY_COST_LIMIT_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.DailyCostLimitUSD = f
		}
	}
	if v := os.Getenv("COSTLENS_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Budget.RequestsPerMinute = n
		}
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	if c.Budget.RequestsPerMinute < 0 {
		return fmt.Errorf("budget.requests_per_minute must not be negative")
	}
	if c.Budget.MaxRetries < 0 {
		return fmt.Errorf("budget.max_retries must not be negative")
	}
	if c.Budget.EstimatedCostPerCall < 0 {
		return fmt.Errorf("budget.estimated_cost_per_call_usd must not be negative")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	return nil
}

// Save writes the config atomically as TOML.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// CacheDir is where committed analysis entries live.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// UsageDBPath is the durable usage ledger location.
func (c *Config) UsageDBPath() string {
	return filepath.Join(c.DataDir, "usage.db")
}

// KeystoreDir holds the encrypted API credential.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// CacheTTL converts the configured hours to a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// ComputeTimeout converts the configured seconds to a duration.
func (c *Config) ComputeTimeout() time.Duration {
	return time.Duration(c.Budget.TimeoutSeconds) * time.Second
}
