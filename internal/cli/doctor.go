// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - System diagnostics command for costlens.
//
// Command: doctor
// Short:   Check config, storage, ledger, and credential health
//
// Examples:
//   costlens doctor             Run all health checks
//   costlens doctor --json      Results as JSON for CI
package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/costlens/internal/cache"
	"github.com/jeranaias/costlens/internal/config"
	"github.com/jeranaias/costlens/internal/keystore"
	"github.com/jeranaias/costlens/internal/usage"
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "Pass"
	case CheckWarn:
		return "Warn"
	case CheckFail:
		return "Fail"
	default:
		return "Unknown"
	}
}

var (
	checkPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	checkWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	checkFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	fixStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true).PaddingLeft(2)
)

// Symbol returns the rendered status tag.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return checkPassStyle.Render("[OK]")
	case CheckWarn:
		return checkWarnStyle.Render("[!!]")
	case CheckFail:
		return checkFailStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"` // Suggested fix command or instruction
}

// Render returns a formatted line for the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.Status.Symbol(), ValueStyle.Render(c.Message))
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + fixStyle.Render("-> "+c.Fix)
	}
	return result
}

// =============================================================================
// DOCTOR COMMAND HANDLER
// =============================================================================

// HandleDoctor handles the "doctor" command.
func HandleDoctor(args Args) error {
	checks := runHealthChecks(args)

	failed := 0
	for _, c := range checks {
		if c.Status == CheckFail {
			failed++
		}
	}

	if args.JSON {
		if err := NewJSONResponse("doctor", map[string]interface{}{
			"checks": checks,
			"failed": failed,
		}).Print(); err != nil {
			return err
		}
	} else {
		fmt.Println(TitleStyle.Render("costlens doctor"))
		for _, c := range checks {
			fmt.Println(c.Render())
		}
		fmt.Println()
		if failed == 0 {
			fmt.Println(SuccessStyle.Render("All checks passed."))
		} else {
			fmt.Println(ErrorStyle.Render(fmt.Sprintf("%d check(s) failed.", failed)))
		}
	}

	if failed > 0 {
		return NewCommandError("doctor", "check", fmt.Sprintf("%d health checks failed", failed), nil)
	}
	return nil
}

// runHealthChecks exercises each layer the pipeline depends on.
func runHealthChecks(args Args) []HealthCheck {
	var checks []HealthCheck

	// Config must load and validate before anything else is testable.
	path := args.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		checks = append(checks, HealthCheck{
			Name:    "config",
			Status:  CheckFail,
			Message: fmt.Sprintf("configuration: %v", err),
			Fix:     "Run: costlens config init",
		})
		return checks
	}
	checks = append(checks, HealthCheck{
		Name:    "config",
		Status:  CheckPass,
		Message: "configuration loads and validates",
	})

	checks = append(checks, checkDataDir(cfg))
	checks = append(checks, checkCacheStore(cfg))
	checks = append(checks, checkLedger(cfg))
	checks = append(checks, checkCredential(cfg))
	checks = append(checks, checkAPIEndpoint(cfg))

	return checks
}

// checkDataDir verifies the data directory is writable.
func checkDataDir(cfg *config.Config) HealthCheck {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return HealthCheck{
			Name:    "data_dir",
			Status:  CheckFail,
			Message: fmt.Sprintf("data directory %s: %v", cfg.DataDir, err),
		}
	}
	probe := filepath.Join(cfg.DataDir, ".doctor_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return HealthCheck{
			Name:    "data_dir",
			Status:  CheckFail,
			Message: fmt.Sprintf("data directory %s not writable: %v", cfg.DataDir, err),
		}
	}
	os.Remove(probe)
	return HealthCheck{
		Name:    "data_dir",
		Status:  CheckPass,
		Message: fmt.Sprintf("data directory writable (%s)", cfg.DataDir),
	}
}

// checkCacheStore opens the store and surfaces quarantined entries.
func checkCacheStore(cfg *config.Config) HealthCheck {
	store, err := cache.NewStore(cfg.CacheDir(), cfg.CacheTTL(), cfg.Cache.MaxEntries)
	if err != nil {
		return HealthCheck{
			Name:    "cache",
			Status:  CheckFail,
			Message: fmt.Sprintf("cache store: %v", err),
		}
	}
	stats, err := store.Stats()
	if err != nil {
		return HealthCheck{
			Name:    "cache",
			Status:  CheckFail,
			Message: fmt.Sprintf("cache stats: %v", err),
		}
	}
	if stats.Quarantined > 0 {
		return HealthCheck{
			Name:    "cache",
			Status:  CheckWarn,
			Message: fmt.Sprintf("cache open, %d corrupt entries quarantined", stats.Quarantined),
			Fix:     "Quarantined entries are re-analyzed on next use; delete *.corrupt files to clean up",
		}
	}
	return HealthCheck{
		Name:    "cache",
		Status:  CheckPass,
		Message: fmt.Sprintf("cache store open (%d entries)", stats.Entries),
	}
}

// checkLedger opens the usage database and runs a summary query.
func checkLedger(cfg *config.Config) HealthCheck {
	ledger, err := usage.OpenLedger(cfg.UsageDBPath())
	if err != nil {
		return HealthCheck{
			Name:    "ledger",
			Status:  CheckFail,
			Message: fmt.Sprintf("usage ledger: %v", err),
		}
	}
	defer ledger.Close()

	summary, err := ledger.Summary(cfg.Budget.EstimatedCostPerCall)
	if err != nil {
		return HealthCheck{
			Name:    "ledger",
			Status:  CheckFail,
			Message: fmt.Sprintf("ledger query: %v", err),
		}
	}
	return HealthCheck{
		Name:    "ledger",
		Status:  CheckPass,
		Message: fmt.Sprintf("usage ledger open (%d calls recorded)", summary.TotalCalls),
	}
}

// checkCredential reports whether a paid call could authenticate.
func checkCredential(cfg *config.Config) HealthCheck {
	ks := keystore.New(cfg.KeystoreDir())
	if !ks.Exists() {
		return HealthCheck{
			Name:    "credential",
			Status:  CheckWarn,
			Message: "no analysis API credential configured",
			Fix:     "Run: costlens key set",
		}
	}
	if _, err := ks.Retrieve(); err != nil {
		return HealthCheck{
			Name:    "credential",
			Status:  CheckFail,
			Message: fmt.Sprintf("credential unreadable: %v", err),
			Fix:     "Run: costlens key set",
		}
	}
	return HealthCheck{
		Name:    "credential",
		Status:  CheckPass,
		Message: "analysis API credential available",
	}
}

// checkAPIEndpoint validates the configured base URL.
func checkAPIEndpoint(cfg *config.Config) HealthCheck {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return HealthCheck{
			Name:    "api",
			Status:  CheckFail,
			Message: fmt.Sprintf("API base URL %q is not a valid URL", cfg.API.BaseURL),
			Fix:     "Set api.base_url in config.toml",
		}
	}
	if u.Scheme != "https" {
		return HealthCheck{
			Name:    "api",
			Status:  CheckWarn,
			Message: fmt.Sprintf("API base URL uses %s, not https", u.Scheme),
		}
	}
	return HealthCheck{
		Name:    "api",
		Status:  CheckPass,
		Message: fmt.Sprintf("API endpoint %s", cfg.API.BaseURL),
	}
}
