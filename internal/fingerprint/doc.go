// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fingerprint derives stable content-addressed keys for invoices.
//
// The fingerprint of an invoice depends only on its analysis-relevant
// content: the vendor and the normalized line items. Two invoices with
// the same content always produce the same fingerprint, across processes
// and restarts, so the response cache can guarantee at-most-once paid
// analysis per unique invoice.
package fingerprint
