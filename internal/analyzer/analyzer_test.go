// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/costlens/internal/cache"
	"github.com/jeranaias/costlens/internal/fingerprint"
	"github.com/jeranaias/costlens/internal/invoice"
	"github.com/jeranaias/costlens/internal/usage"
)

func testInvoice() invoice.Invoice {
	return invoice.Invoice{
		Vendor:      "Microsoft",
		InvoiceDate: "2024-01-15",
		TotalAmount: 5000.0,
		LineItems: []invoice.LineItem{
			{Description: "Office 365 E3 License", Quantity: 10, UnitPrice: 32.0, TotalAmount: 320.0},
			{Description: "Azure Cloud Services", Quantity: 1, UnitPrice: 4680.0, TotalAmount: 4680.0},
		},
	}
}

type harness struct {
	dir        string
	store      *cache.Store
	controller *usage.Controller
}

func newHarness(t *testing.T, limits usage.Limits) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.NewStore(filepath.Join(dir, "cache"), 0, 0)
	require.NoError(t, err)
	ledger, err := usage.OpenLedger(filepath.Join(dir, "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return &harness{dir: dir, store: store, controller: usage.NewController(ledger, limits)}
}

// reopen simulates a process restart: fresh store and controller over
// the same on-disk state.
func (h *harness) reopen(t *testing.T, limits usage.Limits) *harness {
	t.Helper()
	store, err := cache.NewStore(filepath.Join(h.dir, "cache"), 0, 0)
	require.NoError(t, err)
	ledger, err := usage.OpenLedger(filepath.Join(h.dir, "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return &harness{dir: h.dir, store: store, controller: usage.NewController(ledger, limits)}
}

func countingCompute(calls *atomic.Int64) ComputeFunc {
	return func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		calls.Add(1)
		return json.RawMessage(`{"status":"success"}`), ComputeUsage{Tokens: 1200, CostUSD: 0.15}, nil
	}
}

func TestAnalyze_AtMostOnceBilling(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	var calls atomic.Int64
	a := New(h.store, h.controller, countingCompute(&calls), Options{})

	const n = 5
	for i := 0; i < n; i++ {
		analysis, err := a.Analyze(context.Background(), testInvoice())
		require.NoError(t, err)
		assert.Equal(t, i > 0, analysis.CacheHit)
		assert.JSONEq(t, `{"status":"success"}`, string(analysis.Entry.Result))
	}

	assert.EqualValues(t, 1, calls.Load(), "exactly one external call for identical content")

	s := h.controller.Summary()
	assert.Equal(t, 1, s.TotalCalls)
	assert.Equal(t, n-1, s.CacheHits)
	assert.InDelta(t, 0.15, s.TotalCostUSD, 1e-9)
}

func TestAnalyze_ComputeFailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	boom := errors.New("upstream timeout")
	a := New(h.store, h.controller, func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		return nil, ComputeUsage{}, boom
	}, Options{})

	_, err := a.Analyze(context.Background(), testInvoice())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComputeFailed)

	fp, err := fingerprint.Key(testInvoice())
	require.NoError(t, err)
	_, ok, err := h.store.Lookup(fp)
	require.NoError(t, err)
	assert.False(t, ok, "failed compute must not commit")

	s := h.controller.Summary()
	assert.Equal(t, 1, s.MissFailures)
	assert.Zero(t, s.TotalCostUSD, "failure is never billed as success")
}

func TestAnalyze_CancellationNeverCommits(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	started := make(chan struct{})
	a := New(h.store, h.controller, func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		close(started)
		<-ctx.Done()
		return nil, ComputeUsage{}, ctx.Err()
	}, Options{MaxRetries: 2, RetryBackoff: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(ctx, testInvoice())
		done <- err
	}()

	<-started
	cancel()
	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComputeFailed)

	fp, err := fingerprint.Key(testInvoice())
	require.NoError(t, err)
	_, ok, err := h.store.Lookup(fp)
	require.NoError(t, err)
	assert.False(t, ok, "interrupted compute must leave the store untouched")

	// After the "interruption", the same invoice is a clean, retryable miss.
	var calls atomic.Int64
	retry := New(h.store, h.controller, countingCompute(&calls), Options{})
	analysis, err := retry.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)
	assert.False(t, analysis.CacheHit)
	assert.EqualValues(t, 1, calls.Load())
}

func TestAnalyze_DurableAcrossRestart(t *testing.T) {
	limits := usage.Limits{EstimatedCostPerCall: 0.15}
	h := newHarness(t, limits)
	var calls atomic.Int64
	a := New(h.store, h.controller, countingCompute(&calls), Options{})

	_, err := a.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)

	// Fresh in-memory state, same on-disk store and ledger.
	h2 := h.reopen(t, limits)
	a2 := New(h2.store, h2.controller, countingCompute(&calls), Options{})

	analysis, err := a2.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)
	assert.True(t, analysis.CacheHit, "restart must not trigger a new paid call")
	assert.EqualValues(t, 1, calls.Load())

	s := h2.controller.Summary()
	assert.Equal(t, 1, s.TotalCalls)
	assert.Equal(t, 1, s.CacheHits)
}

func TestAnalyze_BudgetExceededBeforeCompute(t *testing.T) {
	h := newHarness(t, usage.Limits{RequestsPerMinute: 1, EstimatedCostPerCall: 0.15})
	var calls atomic.Int64
	a := New(h.store, h.controller, countingCompute(&calls), Options{})

	_, err := a.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)

	other := testInvoice()
	other.Vendor = "Adobe"
	_, err = a.Analyze(context.Background(), other)
	require.Error(t, err)
	assert.ErrorIs(t, err, usage.ErrBudgetExceeded)
	assert.EqualValues(t, 1, calls.Load(), "denied authorize must not invoke compute")

	// The first invoice still serves from cache while the budget is spent.
	analysis, err := a.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)
	assert.True(t, analysis.CacheHit)
}

func TestAnalyze_Malformed_NothingRecorded(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	var calls atomic.Int64
	a := New(h.store, h.controller, countingCompute(&calls), Options{})

	bad := testInvoice()
	bad.LineItems = nil
	_, err := a.Analyze(context.Background(), bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, invoice.ErrMalformed)

	s := h.controller.Summary()
	assert.Zero(t, s.TotalCalls+s.CacheHits+s.CacheMisses)
	assert.Zero(t, calls.Load())
}

func TestAnalyze_RetriesAreTheirOwnMissExecutions(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	var calls atomic.Int64
	a := New(h.store, h.controller, func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		if calls.Add(1) < 3 {
			return nil, ComputeUsage{}, errors.New("transient")
		}
		return json.RawMessage(`{"status":"success"}`), ComputeUsage{Tokens: 10, CostUSD: 0.15}, nil
	}, Options{MaxRetries: 2, RetryBackoff: time.Millisecond})

	analysis, err := a.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)
	assert.False(t, analysis.CacheHit)
	assert.EqualValues(t, 3, calls.Load())

	s := h.controller.Summary()
	assert.Equal(t, 1, s.TotalCalls, "one authorized attempt, one success billed")
}

func TestAnalyze_RetriesBackOffBetweenAttempts(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	var attempts []time.Time
	a := New(h.store, h.controller, func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		attempts = append(attempts, time.Now())
		if len(attempts) < 3 {
			return nil, ComputeUsage{}, errors.New("transient")
		}
		return json.RawMessage(`{"status":"success"}`), ComputeUsage{Tokens: 10, CostUSD: 0.15}, nil
	}, Options{MaxRetries: 2, RetryBackoff: 20 * time.Millisecond})

	_, err := a.Analyze(context.Background(), testInvoice())
	require.NoError(t, err)

	require.Len(t, attempts, 3)
	assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1]), 40*time.Millisecond, "delay doubles per retry")
}

func TestAnalyze_ConcurrentIdenticalRequests_SingleCall(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	var calls atomic.Int64
	slow := func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return json.RawMessage(`{"status":"success"}`), ComputeUsage{Tokens: 10, CostUSD: 0.15}, nil
	}
	a := New(h.store, h.controller, slow, Options{})

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analysis, err := a.Analyze(context.Background(), testInvoice())
			if err != nil {
				t.Error(err)
				return
			}
			if string(analysis.Entry.Result) == "" {
				t.Error("empty result")
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "concurrent identical requests must not double-spend")

	s := h.controller.Summary()
	assert.Equal(t, 1, s.TotalCalls)
	assert.Equal(t, callers-1, s.CacheHits)
}

func TestAnalyze_ConcurrentDistinctRequests_DoNotSerialize(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	var calls atomic.Int64
	a := New(h.store, h.controller, countingCompute(&calls), Options{})

	var wg sync.WaitGroup
	vendors := []string{"Microsoft", "Adobe", "VMware", "AWS"}
	for _, vendor := range vendors {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			inv := testInvoice()
			inv.Vendor = v
			if _, err := a.Analyze(context.Background(), inv); err != nil {
				t.Error(err)
			}
		}(vendor)
	}
	wg.Wait()

	assert.EqualValues(t, len(vendors), calls.Load())
}

func TestAnalyze_ComputeTimeout(t *testing.T) {
	h := newHarness(t, usage.Limits{EstimatedCostPerCall: 0.15})
	a := New(h.store, h.controller, func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
		select {
		case <-ctx.Done():
			return nil, ComputeUsage{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return json.RawMessage(`{}`), ComputeUsage{}, nil
		}
	}, Options{ComputeTimeout: 10 * time.Millisecond})

	_, err := a.Analyze(context.Background(), testInvoice())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComputeFailed)
}
