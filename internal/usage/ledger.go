// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/costlens/internal/util"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// Outcome classifies a usage record.
type Outcome string

const (
	// OutcomeHit means the result was served from the cache; no paid call.
	OutcomeHit Outcome = "hit"
	// OutcomeMissSuccess means a paid call completed and was committed.
	OutcomeMissSuccess Outcome = "miss_success"
	// OutcomeMissFailure means a paid call was attempted but failed;
	// nothing was committed.
	OutcomeMissFailure Outcome = "miss_failure"
)

// Record is one append-only usage entry. A record is written exactly
// once per external call attempt and exactly once per cache hit.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Vendor      string    `json:"vendor"`
	Fingerprint string    `json:"fingerprint"`
	Outcome     Outcome   `json:"outcome"`
	Tokens      int       `json:"tokens"`
	CostUSD     float64   `json:"cost_usd"`
}

// Summary is a derived, recomputable view over the ledger, never the
// source of truth by itself.
type Summary struct {
	TotalCalls    int       `json:"total_api_calls"`
	CacheHits     int       `json:"cache_hits"`
	CacheMisses   int       `json:"cache_misses"`
	MissFailures  int       `json:"miss_failures"`
	HitRate       float64   `json:"cache_hit_rate"`
	TokensUsed    int       `json:"total_tokens_used"`
	TotalCostUSD  float64   `json:"total_cost_usd"`
	SavingsUSD    float64   `json:"cost_savings_usd"`
	NetCostUSD    float64   `json:"net_cost_usd"`
	LastUpdated   time.Time `json:"last_updated"`
}

// VendorUsage is the per-vendor aggregation.
type VendorUsage struct {
	Vendor       string  `json:"vendor"`
	Calls        int     `json:"api_calls"`
	Tokens       int     `json:"total_tokens"`
	CostUSD      float64 `json:"total_cost_usd"`
	CacheHits    int     `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// DailyUsage is one day of the trend view.
type DailyUsage struct {
	Date         string  `json:"date"`
	Calls        int     `json:"api_calls"`
	Tokens       int     `json:"total_tokens"`
	CostUSD      float64 `json:"total_cost_usd"`
	CacheHits    int     `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the durable usage log. Appends are INSERTs; nothing is ever
// updated in place.
type Ledger struct {
	db *sql.DB
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id          TEXT PRIMARY KEY,
    ts          TEXT NOT NULL,
    vendor      TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    tokens      INTEGER NOT NULL,
    cost_usd    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_records(ts);
CREATE INDEX IF NOT EXISTS idx_usage_vendor ON usage_records(vendor);
CREATE INDEX IF NOT EXISTS idx_usage_outcome ON usage_records(outcome);
`

// tsLayout is fixed-width so the lexicographic ts comparisons in SQL
// match chronological order. RFC3339Nano trims trailing fractional
// zeros, which breaks string ordering at sub-second boundaries.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenLedger opens (creating if needed) the usage database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	// SQLite handles one writer at a time; serialize through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append durably writes one record. An empty ID or zero timestamp is
// filled in.
func (l *Ledger) Append(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO usage_records (id, ts, vendor, fingerprint, outcome, tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(tsLayout),
		rec.Vendor, rec.Fingerprint, string(rec.Outcome), rec.Tokens, rec.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}
	return nil
}

// Summary recomputes the aggregate view from the full ledger. Savings
// are estimated as cache hits times estCostPerCall, matching how a hit
// avoids one paid call.
func (l *Ledger) Summary(estCostPerCall float64) (Summary, error) {
	row := l.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN outcome != 'hit' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'hit' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'miss_failure' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM usage_records`)

	var s Summary
	if err := row.Scan(&s.TotalCalls, &s.CacheHits, &s.MissFailures, &s.TokensUsed, &s.TotalCostUSD); err != nil {
		return Summary{}, fmt.Errorf("failed to compute usage summary: %w", err)
	}

	s.CacheMisses = s.TotalCalls
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		s.HitRate = float64(s.CacheHits) / float64(total)
	}
	s.SavingsUSD = float64(s.CacheHits) * estCostPerCall
	s.NetCostUSD = s.TotalCostUSD - s.SavingsUSD
	s.LastUpdated = time.Now().UTC()
	return s, nil
}

// CostSince returns the cost of successful paid calls at or after t.
// Used for the daily spend ceiling.
func (l *Ledger) CostSince(t time.Time) (float64, error) {
	row := l.db.QueryRow(
		`SELECT COALESCE(SUM(cost_usd), 0) FROM usage_records
		 WHERE outcome = 'miss_success' AND ts >= ?`,
		t.UTC().Format(tsLayout),
	)
	var cost float64
	if err := row.Scan(&cost); err != nil {
		return 0, fmt.Errorf("failed to compute spend: %w", err)
	}
	return cost, nil
}

// VendorBreakdown aggregates usage per vendor, most expensive first.
func (l *Ledger) VendorBreakdown() ([]VendorUsage, error) {
	rows, err := l.db.Query(`
		SELECT vendor,
		       SUM(CASE WHEN outcome != 'hit' THEN 1 ELSE 0 END) AS calls,
		       COALESCE(SUM(tokens), 0),
		       COALESCE(SUM(cost_usd), 0) AS cost,
		       SUM(CASE WHEN outcome = 'hit' THEN 1 ELSE 0 END)
		FROM usage_records
		GROUP BY vendor
		ORDER BY cost DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor breakdown: %w", err)
	}
	defer rows.Close()

	var vendors []VendorUsage
	for rows.Next() {
		var v VendorUsage
		if err := rows.Scan(&v.Vendor, &v.Calls, &v.Tokens, &v.CostUSD, &v.CacheHits); err != nil {
			return nil, fmt.Errorf("failed to scan vendor row: %w", err)
		}
		if total := v.Calls + v.CacheHits; total > 0 {
			v.CacheHitRate = float64(v.CacheHits) / float64(total)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// Trends aggregates usage per day over the trailing window.
func (l *Ledger) Trends(days int) ([]DailyUsage, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := l.db.Query(`
		SELECT substr(ts, 1, 10) AS day,
		       SUM(CASE WHEN outcome != 'hit' THEN 1 ELSE 0 END),
		       COALESCE(SUM(tokens), 0),
		       COALESCE(SUM(cost_usd), 0),
		       SUM(CASE WHEN outcome = 'hit' THEN 1 ELSE 0 END)
		FROM usage_records
		WHERE ts >= ?
		GROUP BY day
		ORDER BY day`,
		cutoff.Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	defer rows.Close()

	var trend []DailyUsage
	for rows.Next() {
		var d DailyUsage
		if err := rows.Scan(&d.Date, &d.Calls, &d.Tokens, &d.CostUSD, &d.CacheHits); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		if total := d.Calls + d.CacheHits; total > 0 {
			d.CacheHitRate = float64(d.CacheHits) / float64(total)
		}
		trend = append(trend, d)
	}
	return trend, rows.Err()
}

// Prune deletes records older than the cutoff and returns the count
// removed. Maintenance only.
func (l *Ledger) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := l.db.Exec(`DELETE FROM usage_records WHERE ts < ?`,
		cutoff.Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	return res.RowsAffected()
}

// Export writes every record to a JSON file for backup or external
// dashboards.
func (l *Ledger) Export(path string) (int, error) {
	rows, err := l.db.Query(
		`SELECT id, ts, vendor, fingerprint, outcome, tokens, cost_usd
		 FROM usage_records ORDER BY ts`)
	if err != nil {
		return 0, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts, outcome string
		if err := rows.Scan(&rec.ID, &ts, &rec.Vendor, &rec.Fingerprint, &outcome, &rec.Tokens, &rec.CostUSD); err != nil {
			return 0, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal usage records: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return 0, err
	}
	return len(records), nil
}
