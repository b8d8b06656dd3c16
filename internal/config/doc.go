// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for costlens.
//
// Configuration is TOML at ~/.costlens/config.toml with built-in
// defaults and environment variable overrides. There is no hidden global
// config: Load returns a value that callers pass explicitly to the
// components that need it.
package config
