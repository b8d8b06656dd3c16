// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage tracks every analysis API attempt and cache hit in a
// durable append-only SQLite ledger, and enforces call-rate and cost
// budgets before any paid call is allowed to proceed.
//
// The ledger is the source of truth: summaries, vendor breakdowns, and
// trends are recomputed from it on demand, so a freshly started process
// reflects all prior activity.
package usage
