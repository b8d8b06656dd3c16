// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInvoice() Invoice {
	return Invoice{
		Vendor:      "Microsoft",
		InvoiceDate: "2024-01-15",
		TotalAmount: 5000.0,
		LineItems: []LineItem{
			{Description: "Office 365 E3 License", Quantity: 10, UnitPrice: 32.0, TotalAmount: 320.0},
			{Description: "Azure Cloud Services", Quantity: 1, UnitPrice: 4680.0, TotalAmount: 4680.0},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validInvoice().Validate())
}

func TestValidate_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Invoice)
	}{
		{"missing vendor", func(inv *Invoice) { inv.Vendor = "  " }},
		{"negative total", func(inv *Invoice) { inv.TotalAmount = -1 }},
		{"no line items", func(inv *Invoice) { inv.LineItems = nil }},
		{"empty description", func(inv *Invoice) { inv.LineItems[0].Description = "" }},
		{"negative quantity", func(inv *Invoice) { inv.LineItems[0].Quantity = -2 }},
		{"negative unit price", func(inv *Invoice) { inv.LineItems[1].UnitPrice = -0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(&inv)
			err := inv.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ms.json")
	content := `{
		"vendor": "Microsoft",
		"invoice_date": "2024-01-15",
		"total_amount": 5000.0,
		"line_items": [
			{"description": "Office 365 E3 License", "quantity": 10, "unit_price": 32.0, "total_amount": 320.0}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	inv, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", inv.Vendor)
	assert.Len(t, inv.LineItems, 1)
}

func TestLoadFile_BadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	good := `{"vendor":"Adobe","invoice_date":"2024-02-01","total_amount":100,
		"line_items":[{"description":"Acrobat Pro","quantity":1,"unit_price":100,"total_amount":100}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_adobe.json"), []byte(good), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_bad.json"), []byte(`{"vendor":""}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	invoices, errs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "Adobe", invoices[0].Vendor)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs["a_bad.json"], ErrMalformed)
}
