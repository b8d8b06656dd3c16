// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Compute(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "analysis-large", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"content": [{"type": "text", "text": "Azure spend is 12% above benchmark."}],
			"usage": {"input_tokens": 1000, "output_tokens": 500}
		}`))
	})

	c, err := NewClient(ClientConfig{
		BaseURL:             srv.URL,
		APIKey:              "test-key",
		Model:               "analysis-large",
		MaxTokens:           4000,
		InputPricePerToken:  0.0001,
		OutputPricePerToken: 0.0002,
	})
	require.NoError(t, err)

	result, used, err := c.Compute(context.Background(), testInvoice())
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(result, &parsed))
	assert.Equal(t, "success", parsed["status"])
	assert.Contains(t, parsed["analysis"], "benchmark")

	assert.Equal(t, 1500, used.Tokens)
	assert.InDelta(t, 1000*0.0001+500*0.0002, used.CostUSD, 1e-9)
}

func TestClient_Compute_APIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
	})

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, _, err = c.Compute(context.Background(), testInvoice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Compute_HonorsCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	t.Cleanup(func() { close(block) })

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = c.Compute(ctx, testInvoice())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "https://api.example.com"})
	assert.Error(t, err)
}
