// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cache_cmd.go - Cache management CLI commands for costlens.
//
// Command: cache [subcommand]
// Short:   Manage the durable response cache
//
// Subcommands:
//   stats (default)     Show cache statistics
//   evict               Evict expired entries
//   clear               Remove every cached result
//   export              Write all entries to a JSON file
//
// Examples:
//   costlens cache                   Show stats (default)
//   costlens cache stats --json     Stats in JSON format
//   costlens cache evict            Drop entries past their TTL
//   costlens cache clear --confirm  Remove all entries
//   costlens cache export --output entries.json
//
// Statistics Explained:
//   Entries      Number of cached analysis results
//   Quarantined  Corrupt entries set aside, never served
//   Size         Total bytes on disk
//   Hit rate     From the usage ledger, not the store
package cli

import (
	"fmt"
)

// CacheStatsData is the JSON payload for cache stats.
type CacheStatsData struct {
	Dir         string  `json:"dir"`
	Entries     int     `json:"entries"`
	Quarantined int     `json:"quarantined"`
	TotalBytes  int64   `json:"total_bytes"`
	HitRate     float64 `json:"cache_hit_rate"`
}

// HandleCache handles the "cache" command with its subcommands.
func HandleCache(args Args) error {
	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	switch args.Subcommand {
	case "", "stats":
		return showCacheStats(app, args)
	case "evict":
		return evictCache(app, args)
	case "clear":
		return clearCache(app, args)
	case "export":
		return exportCache(app, args)
	default:
		return NewValidationError("cache subcommand", args.Subcommand, "must be stats, evict, clear, or export")
	}
}

// exportCache writes every cached entry to a single JSON file.
func exportCache(app *App, args Args) error {
	output, ok := args.Options["output"]
	if !ok || output == "" || output == "true" {
		return NewValidationErrorWithExample("output", output, "an output file is required",
			"costlens cache export --output entries.json")
	}

	count, err := app.Store.Export(output)
	if err != nil {
		return NewCommandError("cache", "export", "cache export failed", err)
	}

	if args.JSON {
		return NewJSONResponse("cache export", map[string]interface{}{
			"path":    output,
			"entries": count,
		}).Print()
	}
	fmt.Printf("%s %d entries exported to %s\n", SuccessStyle.Render("OK"), count, output)
	return nil
}

// showCacheStats displays entry counts, disk usage, and the hit rate.
func showCacheStats(app *App, args Args) error {
	stats, err := app.Store.Stats()
	if err != nil {
		return NewCommandError("cache", "stats", "stat collection failed", err)
	}
	summary := app.Controller.Summary()

	data := CacheStatsData{
		Dir:         app.Store.Dir(),
		Entries:     stats.Entries,
		Quarantined: stats.Quarantined,
		TotalBytes:  stats.TotalBytes,
		HitRate:     summary.HitRate,
	}

	if args.JSON {
		return NewJSONResponse("cache stats", data).Print()
	}

	fmt.Println(TitleStyle.Render("Cache Statistics"))
	fmt.Printf("%s %s\n", LabelStyle.Render("Location:"), ValueStyle.Render(data.Dir))
	fmt.Printf("%s %d\n", LabelStyle.Render("Entries:"), data.Entries)
	if data.Quarantined > 0 {
		fmt.Printf("%s %s\n", LabelStyle.Render("Quarantined:"), WarningStyle.Render(fmt.Sprintf("%d", data.Quarantined)))
	}
	fmt.Printf("%s %s\n", LabelStyle.Render("Size:"), ValueStyle.Render(formatBytes(data.TotalBytes)))
	fmt.Printf("%s %.1f%%\n", LabelStyle.Render("Hit rate:"), data.HitRate*100)
	return nil
}

// evictCache drops expired entries. Safe to run repeatedly.
func evictCache(app *App, args Args) error {
	evicted, err := app.Store.EvictExpired(app.Config.CacheTTL())
	if err != nil {
		return NewCommandError("cache", "evict", "eviction failed", err)
	}

	if args.JSON {
		return NewJSONResponse("cache evict", map[string]int{"evicted": evicted}).Print()
	}
	fmt.Printf("%s %d expired entries evicted\n", SuccessStyle.Render("OK"), evicted)
	return nil
}

// clearCache removes every cached result after confirmation.
func clearCache(app *App, args Args) error {
	confirmed, err := RequireConfirmation(args.Confirm, "clear the entire response cache", args.JSON)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := app.Store.Clear(); err != nil {
		return NewCommandError("cache", "clear", "clear failed", err)
	}

	if args.JSON {
		return NewJSONResponse("cache clear", map[string]bool{"cleared": true}).Print()
	}
	fmt.Printf("%s cache cleared\n", SuccessStyle.Render("OK"))
	return nil
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
