// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared stack construction for CLI command handlers.
//
// Every handler that touches the cache, the ledger, or the analysis
// API builds the same stack: config, durable store, usage ledger, cost
// controller, and (only when a paid call may happen) the API client.
package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/costlens/internal/analyzer"
	"github.com/jeranaias/costlens/internal/cache"
	"github.com/jeranaias/costlens/internal/config"
	"github.com/jeranaias/costlens/internal/keystore"
	"github.com/jeranaias/costlens/internal/usage"
)

// App bundles the long-lived pieces a command handler needs.
type App struct {
	Config     *config.Config
	Store      *cache.Store
	Ledger     *usage.Ledger
	Controller *usage.Controller
}

// openApp loads configuration and opens the durable store and ledger.
func openApp(args Args) (*App, error) {
	path := args.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration load failed: %w", err)
	}

	store, err := cache.NewStore(cfg.CacheDir(), cfg.CacheTTL(), cfg.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("cache store open failed: %w", err)
	}

	ledger, err := usage.OpenLedger(cfg.UsageDBPath())
	if err != nil {
		return nil, fmt.Errorf("usage ledger open failed: %w", err)
	}

	controller := usage.NewController(ledger, usage.Limits{
		RequestsPerMinute:    cfg.Budget.RequestsPerMinute,
		MaxConcurrent:        cfg.Budget.MaxConcurrent,
		DailyCostLimitUSD:    cfg.Budget.DailyCostLimitUSD,
		EstimatedCostPerCall: cfg.Budget.EstimatedCostPerCall,
	})

	return &App{
		Config:     cfg,
		Store:      store,
		Ledger:     ledger,
		Controller: controller,
	}, nil
}

// Close releases the ledger database handle.
func (a *App) Close() error {
	return a.Ledger.Close()
}

// Analyzer builds the cached analyzer over the live API client. This is
// the only path that needs a credential; read-only commands never ask
// for one.
func (a *App) Analyzer() (*analyzer.Analyzer, error) {
	key, err := resolveAPIKey(a.Config)
	if err != nil {
		return nil, err
	}

	client, err := analyzer.NewClient(analyzer.ClientConfig{
		BaseURL:             a.Config.API.BaseURL,
		APIKey:              key,
		Model:               a.Config.API.Model,
		MaxTokens:           a.Config.API.MaxTokens,
		InputPricePerToken:  a.Config.API.InputPricePerToken,
		OutputPricePerToken: a.Config.API.OutputPricePerToken,
	})
	if err != nil {
		return nil, err
	}

	return analyzer.New(a.Store, a.Controller, client.Compute, analyzer.Options{
		ComputeTimeout: a.Config.ComputeTimeout(),
		MaxRetries:     a.Config.Budget.MaxRetries,
	}), nil
}

// resolveAPIKey returns the analysis API key. The environment variable
// wins over the keystore so CI and one-off runs never touch disk.
func resolveAPIKey(cfg *config.Config) (string, error) {
	if key := os.Getenv(keystore.EnvAPIKey); key != "" {
		return key, nil
	}
	return keystore.New(cfg.KeystoreDir()).Retrieve()
}
