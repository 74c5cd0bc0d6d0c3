package provider

import "net/http"

// NewMiniMaxAdapter builds the MiniMax adapter: it speaks the same
// Anthropic-compatible wire protocol against MiniMax's endpoint, with
// prompt-caching disabled since MiniMax does not honor cache_control
// breakpoints (spec.md §4.5 MiniMax row).
func NewMiniMaxAdapter(apiKey, baseURL string, httpClient *http.Client) *AnthropicAdapter {
	return NewAnthropicAdapter(KindMiniMax, apiKey, baseURL, false, httpClient)
}
