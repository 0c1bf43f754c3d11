package domain

import "encoding/json"

// TokenUsage carries the token accounting reported by a provider for one call.
// Cached and cache-creation counts are zero for providers that do not report
// prompt caching.
type TokenUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CachedTokens        int64 `json:"cached_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
}

// Total returns input plus output tokens, the figure token budgets meter.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Response is the result of one successful model call.
type Response struct {
	Model   string     `json:"model"`
	Content string     `json:"content,omitempty"`
	Usage   TokenUsage `json:"usage"`
	// CostUSD is the spend attributed to this call. Zero when the invoker
	// cannot price the call; budget cost counters then stay flat while
	// token counters still move.
	CostUSD float64 `json:"cost_usd"`
	// Raw holds the upstream response body when the call went over HTTP,
	// so gateways can forward it untouched.
	Raw json.RawMessage `json:"-"`
}
