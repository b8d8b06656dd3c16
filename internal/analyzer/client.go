// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// client.go - HTTP client for the hosted licensing-analysis model.
//
// The cache and cost-control layers treat this as an opaque compute
// function: network I/O happens only here, and only after the caller
// holds a budget permit.
package analyzer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/costlens/internal/invoice"
)

const (
	// maxResponseSize caps the response body read.
	// SECURITY: Response size limit prevents memory exhaustion
	maxResponseSize = 10 * 1024 * 1024

	analysisSystemPrompt = "You are an expert IT licensing analyst specializing in cost optimization " +
		"and vendor management. Analyze the provided invoice and provide actionable insights " +
		"for cost savings and efficiency improvements."
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// ClientConfig configures the analysis API client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// Prices are USD per token, used to derive the per-call cost from
	// response usage metadata.
	InputPricePerToken  float64
	OutputPricePerToken float64
}

// Client calls the hosted analysis model. Its Compute method satisfies
// ComputeFunc.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient builds an analysis client. The API key is required; the
// cache layer in front of this client is what keeps calls rare.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("analysis API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("analysis API base URL is required")
	}
	return &Client{cfg: cfg, http: sharedHTTPClient}, nil
}

// messageRequest is the wire request for the messages endpoint.
type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messageResponse is the subset of the wire response we consume.
// Unknown fields are ignored.
type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Compute sends one invoice for analysis and returns the analysis
// payload plus the tokens and cost the call consumed. It makes exactly
// one HTTP request: retry policy belongs to the Analyzer's miss path so
// attempts are never hidden from the cost accounting.
func (c *Client) Compute(ctx context.Context, inv invoice.Invoice) (json.RawMessage, ComputeUsage, error) {
	prompt, err := buildPrompt(inv)
	if err != nil {
		return nil, ComputeUsage{}, err
	}

	reqBody, err := json.Marshal(messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    analysisSystemPrompt,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, ComputeUsage{}, fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, ComputeUsage{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ComputeUsage{}, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, ComputeUsage{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ComputeUsage{}, fmt.Errorf("analysis API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var mr messageResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, ComputeUsage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range mr.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	result, err := json.Marshal(map[string]any{
		"status":   "success",
		"model":    c.cfg.Model,
		"analysis": text.String(),
	})
	if err != nil {
		return nil, ComputeUsage{}, fmt.Errorf("failed to encode analysis result: %w", err)
	}

	used := ComputeUsage{
		Tokens: mr.Usage.InputTokens + mr.Usage.OutputTokens,
		CostUSD: float64(mr.Usage.InputTokens)*c.cfg.InputPricePerToken +
			float64(mr.Usage.OutputTokens)*c.cfg.OutputPricePerToken,
	}
	return result, used, nil
}

// buildPrompt renders the invoice into the analysis prompt.
func buildPrompt(inv invoice.Invoice) (string, error) {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice: %w", err)
	}
	var b strings.Builder
	b.WriteString("Analyze the following vendor invoice for licensing cost optimization. ")
	b.WriteString("Flag line items priced above industry standards and suggest consolidation opportunities.\n\n")
	b.Write(data)
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
