// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache implements the durable analysis-result store.
//
// Each committed result lives in its own JSON file addressed by the
// invoice fingerprint. Commits go through an atomic temp-file-then-rename
// write, so a crash mid-commit never leaves a partial entry visible to a
// later lookup. A compute call that dies before returning a result leaves
// no trace here at all: commit is only reachable with a completed result
// in hand.
package cache
