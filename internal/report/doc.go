// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report renders cost-optimization reports from the usage
// ledger and cached analyses. Markdown is the canonical format; the
// terminal renderer is a preview over the same document.
package report
