// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package invoice defines the vendor invoice model consumed by the
// analysis pipeline, along with validation and JSON loaders.
package invoice
