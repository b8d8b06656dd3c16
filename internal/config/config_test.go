// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Budget.RequestsPerMinute)
	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.InDelta(t, 0.15, cfg.Budget.EstimatedCostPerCall, 1e-9)
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
data_dir = "` + dir + `"

[cache]
ttl_hours = 48

[budget]
requests_per_minute = 5
daily_cost_limit_usd = 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Cache.TTLHours)
	assert.Equal(t, 5, cfg.Budget.RequestsPerMinute)
	assert.InDelta(t, 2.5, cfg.Budget.DailyCostLimitUSD, 1e-9)
	// Untouched sections keep defaults.
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.API.Model)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COSTLENS_DATA_DIR", "/srv/costlens")
	t.Setenv("COSTLENS_REQUESTS_PER_MINUTE", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/costlens", cfg.DataDir)
	assert.Equal(t, 3, cfg.Budget.RequestsPerMinute)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[[broken"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Cache.TTLHours = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.API.BaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Budget.DailyCostLimitUSD = 7.75
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 7.75, loaded.Budget.DailyCostLimitUSD, 1e-9)
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/cl"
	assert.Equal(t, "/tmp/cl/cache", cfg.CacheDir())
	assert.Equal(t, "/tmp/cl/usage.db", cfg.UsageDBPath())
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
}
