// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/costlens/internal/fingerprint"
)

// Entry is a committed analysis result. Entries are immutable once
// written: a changed invoice yields a different fingerprint and a new
// entry, never an overwrite. Unknown JSON fields are ignored on read so
// older binaries stay forward-readable if the schema gains fields.
type Entry struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Vendor      string                  `json:"vendor"`
	Result      json.RawMessage         `json:"result"`
	TokensUsed  int                     `json:"tokens_used"`
	CostUSD     float64                 `json:"cost_usd"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Expired reports whether the entry is older than ttl. A zero ttl means
// entries never expire.
func (e *Entry) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > ttl
}

// Stats summarizes the on-disk state of the store.
type Stats struct {
	Entries     int   `json:"entries"`
	Quarantined int   `json:"quarantined"`
	TotalBytes  int64 `json:"total_bytes"`
}
