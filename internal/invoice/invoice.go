// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMalformed indicates an invoice is missing required fields or has
// fields of the wrong shape. Malformed invoices are rejected before any
// fingerprinting or analysis takes place; nothing is recorded for them.
var ErrMalformed = errors.New("malformed invoice")

// =============================================================================
// MODEL
// =============================================================================

// Invoice is a single vendor invoice submitted for licensing analysis.
// It is a value type: two invoices with the same content are the same
// analysis request regardless of where they were loaded from.
type Invoice struct {
	Vendor      string     `json:"vendor"`
	InvoiceDate string     `json:"invoice_date"`
	TotalAmount float64    `json:"total_amount"`
	LineItems   []LineItem `json:"line_items"`
}

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalAmount float64 `json:"total_amount"`
}

// Validate checks that the invoice has the shape the analyzer requires.
// All failures wrap ErrMalformed.
func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.Vendor) == "" {
		return fmt.Errorf("%w: vendor is required", ErrMalformed)
	}
	if inv.TotalAmount < 0 {
		return fmt.Errorf("%w: total_amount must not be negative", ErrMalformed)
	}
	if len(inv.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrMalformed)
	}
	for i, item := range inv.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: line item %d has no description", ErrMalformed, i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("%w: line item %d has negative quantity", ErrMalformed, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: line item %d has negative unit price", ErrMalformed, i)
		}
	}
	return nil
}

// =============================================================================
// LOADERS
// =============================================================================

// LoadFile reads a single invoice from a JSON file and validates it.
func LoadFile(path string) (Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Invoice{}, fmt.Errorf("failed to read invoice file: %w", err)
	}

	var inv Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return Invoice{}, fmt.Errorf("%w: %s: %v", ErrMalformed, filepath.Base(path), err)
	}
	if err := inv.Validate(); err != nil {
		return Invoice{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return inv, nil
}

// LoadDir reads every *.json invoice in dir, sorted by filename so batch
// runs are deterministic. Files that fail to parse or validate are
// returned in errs keyed by filename; valid invoices are still returned.
func LoadDir(dir string) ([]Invoice, map[string]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read invoice directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	invoices := make([]Invoice, 0, len(names))
	errs := make(map[string]error)
	for _, name := range names {
		inv, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs[name] = err
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices, errs, nil
}
