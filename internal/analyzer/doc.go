// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer is the single entry point for invoice analysis. It
// composes the fingerprinter, the durable cache, and the cost controller
// around a caller-supplied compute function, giving idempotent
// get-or-compute semantics: at most one committed result and at most one
// billed successful call per unique invoice, ever.
package analyzer
