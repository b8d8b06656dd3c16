// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline chains invoice loading, cached analysis, and report
// generation into batch and watch-mode runs.
package pipeline
