// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_AppendAndSummary(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.Append(Record{Vendor: "Microsoft", Fingerprint: "f1", Outcome: OutcomeMissSuccess, Tokens: 1200, CostUSD: 0.15}))
	require.NoError(t, l.Append(Record{Vendor: "Microsoft", Fingerprint: "f1", Outcome: OutcomeHit}))
	require.NoError(t, l.Append(Record{Vendor: "Adobe", Fingerprint: "f2", Outcome: OutcomeMissFailure}))

	s, err := l.Summary(0.15)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalCalls)
	assert.Equal(t, 1, s.CacheHits)
	assert.Equal(t, 2, s.CacheMisses)
	assert.Equal(t, 1, s.MissFailures)
	assert.InDelta(t, 1.0/3.0, s.HitRate, 1e-9)
	assert.Equal(t, 1200, s.TokensUsed)
	assert.InDelta(t, 0.15, s.TotalCostUSD, 1e-9)
	assert.InDelta(t, 0.15, s.SavingsUSD, 1e-9)
}

func TestLedger_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(Record{Vendor: "Microsoft", Fingerprint: "f1", Outcome: OutcomeMissSuccess, CostUSD: 0.15}))
	require.NoError(t, l.Close())

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	defer reopened.Close()

	s, err := reopened.Summary(0.15)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalCalls, "usage must persist across restarts")
}

func TestLedger_CostSince(t *testing.T) {
	l := openTestLedger(t)

	old := Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeMissSuccess, CostUSD: 1.0,
		Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	recent := Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeMissSuccess, CostUSD: 0.25}
	hit := Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeHit}
	require.NoError(t, l.Append(old))
	require.NoError(t, l.Append(recent))
	require.NoError(t, l.Append(hit))

	cost, err := l.CostSince(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, cost, 1e-9, "only recent successful calls count toward spend")
}

func TestLedger_CostSinceSubsecondBoundary(t *testing.T) {
	l := openTestLedger(t)

	// A record 10ns inside the window, with a cutoff whose fraction
	// would serialize shorter than the record's under a trimming
	// format. Fixed-width timestamps keep string order chronological.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := base.Add(300 * time.Millisecond)
	rec := Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeMissSuccess, CostUSD: 0.10,
		Timestamp: cutoff.Add(10 * time.Nanosecond)}
	require.NoError(t, l.Append(rec))

	cost, err := l.CostSince(cutoff)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, cost, 1e-9, "a record after the cutoff must be inside the window")
}

func TestLedger_VendorBreakdown(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.Append(Record{Vendor: "Microsoft", Fingerprint: "f1", Outcome: OutcomeMissSuccess, Tokens: 100, CostUSD: 0.30}))
	require.NoError(t, l.Append(Record{Vendor: "Microsoft", Fingerprint: "f1", Outcome: OutcomeHit}))
	require.NoError(t, l.Append(Record{Vendor: "Adobe", Fingerprint: "f2", Outcome: OutcomeMissSuccess, Tokens: 50, CostUSD: 0.10}))

	vendors, err := l.VendorBreakdown()
	require.NoError(t, err)
	require.Len(t, vendors, 2)

	// Ordered by cost, most expensive first.
	assert.Equal(t, "Microsoft", vendors[0].Vendor)
	assert.Equal(t, 1, vendors[0].Calls)
	assert.Equal(t, 1, vendors[0].CacheHits)
	assert.InDelta(t, 0.5, vendors[0].CacheHitRate, 1e-9)
}

func TestLedger_Trends(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.Append(Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeMissSuccess, CostUSD: 0.15}))
	require.NoError(t, l.Append(Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeHit}))

	trend, err := l.Trends(7)
	require.NoError(t, err)
	require.Len(t, trend, 1)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), trend[0].Date)
	assert.Equal(t, 1, trend[0].Calls)
	assert.Equal(t, 1, trend[0].CacheHits)
}

func TestLedger_Prune(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.Append(Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeMissSuccess,
		Timestamp: time.Now().UTC().AddDate(-1, 0, -1)}))
	require.NoError(t, l.Append(Record{Vendor: "V", Fingerprint: "f", Outcome: OutcomeMissSuccess}))

	n, err := l.Prune(365 * 24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	s, err := l.Summary(0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalCalls)
}

func TestLedger_Export(t *testing.T) {
	l := openTestLedger(t)
	require.NoError(t, l.Append(Record{Vendor: "Microsoft", Fingerprint: "f1", Outcome: OutcomeMissSuccess, CostUSD: 0.15}))

	path := filepath.Join(t.TempDir(), "export.json")
	n, err := l.Export(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"miss_success"`)
	assert.Contains(t, string(data), `"Microsoft"`)
}
