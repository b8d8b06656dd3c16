// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dashboard provides the interactive terminal view of analysis
// spend. It reads the durable usage ledger and renders summary, vendor,
// and trend views that refresh while watching a live pipeline.
package dashboard
