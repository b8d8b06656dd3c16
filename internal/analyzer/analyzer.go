// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/costlens/internal/cache"
	"github.com/jeranaias/costlens/internal/fingerprint"
	"github.com/jeranaias/costlens/internal/invoice"
	"github.com/jeranaias/costlens/internal/usage"
)

// ErrComputeFailed wraps any failure of the external compute call,
// including timeout and cancellation. By the time it is surfaced, no
// commit has happened and no success was billed; the same invoice is
// safe to retry.
var ErrComputeFailed = errors.New("analysis compute failed")

// ComputeUsage is what one external call consumed, reported by the
// compute function alongside its result.
type ComputeUsage struct {
	Tokens  int
	CostUSD float64
}

// ComputeFunc performs the paid external analysis. It is the only
// operation here that may block for non-trivial time; it must honor ctx
// cancellation. A cancelled or failed call is indistinguishable from any
// other failure: nothing gets committed.
type ComputeFunc func(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error)

// Analysis is the outcome of one Analyze call.
type Analysis struct {
	Entry    *cache.Entry
	CacheHit bool
}

// =============================================================================
// ANALYZER
// =============================================================================

// Options tunes the miss path.
type Options struct {
	// ComputeTimeout bounds each compute attempt (0 = no per-attempt bound).
	ComputeTimeout time.Duration
	// MaxRetries is the number of additional attempts after a transient
	// compute failure. Each retry is its own miss-path execution; retries
	// never happen on top of a committed result.
	MaxRetries int
	// RetryBackoff is the delay before the first retry, doubling on each
	// further retry so a rate-limited API is not hammered. Zero means
	// defaultRetryBackoff.
	RetryBackoff time.Duration
}

// defaultRetryBackoff is the base retry delay when Options.RetryBackoff
// is unset.
const defaultRetryBackoff = 500 * time.Millisecond

// Analyzer is an explicitly constructed context object: no package-level
// singletons. Share one instance by passing it around.
type Analyzer struct {
	store      *cache.Store
	controller *usage.Controller
	compute    ComputeFunc
	opts       Options

	mu    sync.Mutex
	locks map[fingerprint.Fingerprint]*fpLock
}

type fpLock struct {
	sync.Mutex
	refs int
}

// New builds an Analyzer over the durable store and cost controller.
func New(store *cache.Store, controller *usage.Controller, compute ComputeFunc, opts Options) *Analyzer {
	return &Analyzer{
		store:      store,
		controller: controller,
		compute:    compute,
		opts:       opts,
		locks:      make(map[fingerprint.Fingerprint]*fpLock),
	}
}

// Analyze returns the cached analysis for inv, or computes, commits, and
// bills it exactly once.
//
// The hit path never touches the compute function or the call budget.
// On a miss, callers racing on the same fingerprint serialize on a
// per-fingerprint lock and the losers are served the winner's committed
// entry, so identical content can never double-spend budget. Unrelated
// fingerprints never serialize against each other.
func (a *Analyzer) Analyze(ctx context.Context, inv invoice.Invoice) (*Analysis, error) {
	fp, err := fingerprint.Key(inv)
	if err != nil {
		// Malformed input: surfaced immediately, nothing recorded.
		return nil, err
	}

	if analysis, ok, err := a.lookupHit(fp, inv.Vendor); err != nil {
		return nil, err
	} else if ok {
		return analysis, nil
	}

	lock := a.acquireLock(fp)
	defer a.releaseLock(fp, lock)

	// Re-check under the lock: another caller may have committed while
	// we waited.
	if analysis, ok, err := a.lookupHit(fp, inv.Vendor); err != nil {
		return nil, err
	} else if ok {
		return analysis, nil
	}

	permit, err := a.controller.Authorize(inv.Vendor)
	if err != nil {
		// Denied before any external call; nothing to roll back.
		return nil, err
	}
	defer permit.Release()

	result, used, err := a.computeWithRetry(ctx, inv)
	if err != nil {
		// No commit, no success billed: the invoice stays a clean miss.
		a.record(usage.Record{
			Vendor:      inv.Vendor,
			Fingerprint: string(fp),
			Outcome:     usage.OutcomeMissFailure,
		})
		return nil, fmt.Errorf("%w: %v", ErrComputeFailed, err)
	}

	entry, err := a.store.Commit(fp, inv.Vendor, result, used.Tokens, used.CostUSD)
	if err != nil {
		return nil, err
	}
	a.record(usage.Record{
		Vendor:      inv.Vendor,
		Fingerprint: string(fp),
		Outcome:     usage.OutcomeMissSuccess,
		Tokens:      used.Tokens,
		CostUSD:     used.CostUSD,
	})
	return &Analysis{Entry: entry}, nil
}

// lookupHit returns the committed entry for fp if present, recording the
// cache hit.
func (a *Analyzer) lookupHit(fp fingerprint.Fingerprint, vendor string) (*Analysis, bool, error) {
	entry, ok, err := a.store.Lookup(fp)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	a.record(usage.Record{
		Vendor:      vendor,
		Fingerprint: string(fp),
		Outcome:     usage.OutcomeHit,
	})
	return &Analysis{Entry: entry, CacheHit: true}, true, nil
}

// computeWithRetry runs the compute function with a per-attempt timeout
// and bounded retries, backing off exponentially between attempts. A
// cancelled parent context stops retrying.
func (a *Analyzer) computeWithRetry(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
	backoff := a.opts.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= a.opts.MaxRetries; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if a.opts.ComputeTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, a.opts.ComputeTimeout)
		}
		result, used, err := a.compute(attemptCtx, inv)
		cancel()
		if err == nil {
			return result, used, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// Caller cancelled; retrying would ignore their intent.
			return nil, ComputeUsage{}, ctx.Err()
		}
		if attempt < a.opts.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ComputeUsage{}, ctx.Err()
			case <-time.After(backoff << attempt):
			}
		}
	}
	return nil, ComputeUsage{}, lastErr
}

// record appends a usage record; failures are logged rather than
// propagated so ledger trouble never blocks the result path.
func (a *Analyzer) record(rec usage.Record) {
	if err := a.controller.Record(rec); err != nil {
		log.Printf("analyzer: failed to record usage: %v", err)
	}
}

// acquireLock returns the per-fingerprint mutex, locked.
func (a *Analyzer) acquireLock(fp fingerprint.Fingerprint) *fpLock {
	a.mu.Lock()
	l, ok := a.locks[fp]
	if !ok {
		l = &fpLock{}
		a.locks[fp] = l
	}
	l.refs++
	a.mu.Unlock()

	l.Lock()
	return l
}

// releaseLock unlocks and drops the lock entry once no caller holds it.
func (a *Analyzer) releaseLock(fp fingerprint.Fingerprint, l *fpLock) {
	l.Unlock()

	a.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(a.locks, fp)
	}
	a.mu.Unlock()
}
