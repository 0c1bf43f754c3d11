// Package openai implements a chat-completions client for OpenAI-compatible
// endpoints. One Client serves one upstream endpoint; the model is chosen per
// call so the same client can serve a whole fallback chain on one provider.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/surecall-ai/surecall/internal/core/domain"
)

// Config holds one endpoint's settings.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single call; the executor's total deadline spans all
	// of them.
	Timeout time.Duration
	// Cost rates in USD per 1K tokens.
	InputPer1K  float64
	OutputPer1K float64
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	inputPer1K  float64
	outputPer1K float64
}

// NewClient creates a client for one endpoint.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		inputPer1K:  cfg.InputPer1K,
		outputPer1K: cfg.OutputPer1K,
	}
}

// chatCompletion is the subset of the response we consume. The full payload
// travels onward in Response.Raw.
type chatCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int64 `json:"prompt_tokens"`
		CompletionTokens    int64 `json:"completion_tokens"`
		PromptTokensDetails struct {
			CachedTokens int64 `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
		CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete makes a single chat completion call. The payload is the caller's
// request body; its model field is overwritten with modelID so the same
// payload can be replayed down a fallback chain.
func (c *Client) Complete(ctx context.Context, modelID string, payload map[string]any) (*domain.Response, error) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["model"] = modelID

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == 429 {
		retryAfter := resp.Header.Get("Retry-After")
		return nil, fmt.Errorf("rate limited (429), retry after: %s", retryAfter)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, snippet(raw))
	}

	var cc chatCompletion
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	out := &domain.Response{
		Model: cc.Model,
		Usage: domain.TokenUsage{
			InputTokens:         cc.Usage.PromptTokens,
			OutputTokens:        cc.Usage.CompletionTokens,
			CachedTokens:        cc.Usage.PromptTokensDetails.CachedTokens,
			CacheCreationTokens: cc.Usage.CacheCreationInputTokens,
		},
		Raw: raw,
	}
	if out.Model == "" {
		out.Model = modelID
	}
	if len(cc.Choices) > 0 {
		out.Content = cc.Choices[0].Message.Content
	}
	out.CostUSD = c.price(out.Usage)
	return out, nil
}

func (c *Client) price(u domain.TokenUsage) float64 {
	return float64(u.InputTokens)/1000*c.inputPer1K +
		float64(u.OutputTokens)/1000*c.outputPer1K
}

// Close cleans up idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// snippet truncates an upstream body for error messages.
func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
