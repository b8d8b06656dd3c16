// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jeranaias/costlens/internal/invoice"
)

// Fingerprint is a 64-character hex SHA-256 digest of an invoice's
// canonical form.
type Fingerprint string

// Short returns a truncated form suitable for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 16 {
		return string(f)
	}
	return string(f[:16])
}

// canonicalInvoice is the normalized shape that gets hashed. Field names
// are part of the on-wire canonical form; changing them invalidates
// every existing cache entry.
type canonicalInvoice struct {
	LineItems []canonicalItem `json:"line_items"`
	Vendor    string          `json:"vendor"`
}

type canonicalItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	TotalAmount float64 `json:"total_amount"`
	UnitPrice   float64 `json:"unit_price"`
}

// Key returns the fingerprint for inv. It is pure and deterministic:
// vendor and descriptions are lowercased and trimmed, money values are
// rounded to cents, and line items are sorted by description so that
// logically identical invoices fingerprint identically regardless of
// line-item order. Malformed invoices are rejected, never hashed with
// defaults substituted.
func Key(inv invoice.Invoice) (Fingerprint, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}

	canon := canonicalInvoice{
		Vendor:    strings.ToLower(strings.TrimSpace(inv.Vendor)),
		LineItems: make([]canonicalItem, 0, len(inv.LineItems)),
	}
	for _, item := range inv.LineItems {
		canon.LineItems = append(canon.LineItems, canonicalItem{
			Description: strings.ToLower(strings.TrimSpace(item.Description)),
			Quantity:    item.Quantity,
			UnitPrice:   roundCents(item.UnitPrice),
			TotalAmount: roundCents(item.TotalAmount),
		})
	}
	sort.Slice(canon.LineItems, func(i, j int) bool {
		return canon.LineItems[i].Description < canon.LineItems[j].Description
	})

	data, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize invoice: %w", err)
	}

	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
