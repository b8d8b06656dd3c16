// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keystore stores the analysis API credential at rest,
// encrypted with a locally generated key and written with restrictive
// permissions. The COSTLENS_API_KEY environment variable always takes
// precedence for CI and containerized runs.
package keystore
