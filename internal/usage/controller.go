// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExceeded indicates the call-rate or spend ceiling would be
// exceeded. The caller made no external call and nothing was committed;
// the request is safely retryable after the window resets.
var ErrBudgetExceeded = errors.New("analysis budget exceeded")

// =============================================================================
// CONTROLLER
// =============================================================================

// Limits configures the Controller's ceilings. Zero values disable the
// corresponding check.
type Limits struct {
	// RequestsPerMinute caps paid calls in a sliding one-minute window.
	RequestsPerMinute int
	// MaxConcurrent caps in-flight paid calls.
	MaxConcurrent int
	// DailyCostLimitUSD caps cumulative successful spend per UTC day.
	DailyCostLimitUSD float64
	// EstimatedCostPerCall is the reservation made at authorize time and
	// the per-hit savings estimate.
	EstimatedCostPerCall float64
}

// Controller guards the paid analysis API. Authorize is a single atomic
// check-and-reserve: two concurrent calls at the budget boundary can
// never both succeed when only one permit remains.
type Controller struct {
	mu       sync.Mutex
	ledger   *Ledger
	limiter  *rate.Limiter
	limits   Limits
	inflight int
	reserved float64 // estimated cost of in-flight authorized calls
}

// NewController builds a Controller over the given durable ledger.
func NewController(ledger *Ledger, limits Limits) *Controller {
	var limiter *rate.Limiter
	if limits.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(limits.RequestsPerMinute)),
			limits.RequestsPerMinute,
		)
	}
	return &Controller{ledger: ledger, limiter: limiter, limits: limits}
}

// Ledger exposes the underlying durable log for reporting.
func (c *Controller) Ledger() *Ledger {
	return c.ledger
}

// Permit is the authorization for exactly one external call. It must be
// released exactly once, on every exit path.
type Permit struct {
	c    *Controller
	once sync.Once
}

// Release returns the permit's concurrency slot and cost reservation.
// Safe to call from a defer; repeat calls are no-ops.
func (p *Permit) Release() {
	p.once.Do(func() {
		p.c.mu.Lock()
		p.c.inflight--
		p.c.reserved -= p.c.limits.EstimatedCostPerCall
		p.c.mu.Unlock()
	})
}

// Authorize grants a Permit for one paid call, or fails with
// ErrBudgetExceeded. The concurrency, spend, and rate checks plus the
// reservation happen under one lock, closing the check-then-act race at
// the budget boundary. The daily spend is read from the durable ledger,
// so a restarted process keeps honoring money already spent.
func (c *Controller) Authorize(vendor string) (*Permit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limits.MaxConcurrent > 0 && c.inflight >= c.limits.MaxConcurrent {
		return nil, fmt.Errorf("%w: %d calls already in flight", ErrBudgetExceeded, c.inflight)
	}

	if c.limits.DailyCostLimitUSD > 0 {
		spent, err := c.ledger.CostSince(startOfToday())
		if err != nil {
			return nil, fmt.Errorf("failed to read spend from ledger: %w", err)
		}
		projected := spent + c.reserved + c.limits.EstimatedCostPerCall
		if projected > c.limits.DailyCostLimitUSD {
			return nil, fmt.Errorf("%w: daily spend %.2f of %.2f USD (vendor %s)",
				ErrBudgetExceeded, spent, c.limits.DailyCostLimitUSD, vendor)
		}
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, fmt.Errorf("%w: call rate ceiling reached", ErrBudgetExceeded)
	}

	c.inflight++
	c.reserved += c.limits.EstimatedCostPerCall
	return &Permit{c: c}, nil
}

// Record appends one usage record to the durable log. It is called
// exactly once per external call attempt and exactly once per cache hit.
func (c *Controller) Record(rec Record) error {
	return c.ledger.Append(rec)
}

// Summary recomputes the usage view from the ledger. It fails open: if
// the log cannot be read the zero summary is returned, never an error
// that could block the cache-hit path.
func (c *Controller) Summary() Summary {
	s, err := c.ledger.Summary(c.limits.EstimatedCostPerCall)
	if err != nil {
		log.Printf("usage: summary unavailable: %v", err)
		return Summary{LastUpdated: time.Now().UTC()}
	}
	return s
}

// Recommendations derives cost-optimization advice from the current
// ledger state.
func (c *Controller) Recommendations() []string {
	var recs []string

	s := c.Summary()
	if s.CacheHits+s.CacheMisses > 0 && s.HitRate < 0.5 {
		recs = append(recs, "Low cache hit rate detected. Batch similar invoices together so repeat content is served from cache.")
	}
	if s.TotalCalls > 100 {
		recs = append(recs, "High API call volume (>100 calls). Review whether all invoices need fresh analysis.")
	}
	if s.TotalCostUSD > 100 {
		recs = append(recs, "Total API costs exceed $100. Consider a longer cache TTL or a stricter daily budget.")
	}

	vendors, err := c.ledger.VendorBreakdown()
	if err == nil {
		for _, v := range vendors {
			if v.Calls > 10 {
				recs = append(recs, fmt.Sprintf("High analysis count for %s (%d calls). Consider batch processing.", v.Vendor, v.Calls))
			}
		}
	}
	return recs
}

func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
