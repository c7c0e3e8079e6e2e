package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGenerator calls an OpenAI-compatible chat completion endpoint. It is
// the production Generator; tests substitute a GeneratorFunc.
type HTTPGenerator struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

// NewHTTPGenerator creates a client for an OpenAI-compatible API.
func NewHTTPGenerator(apiKey, apiBase, model string, timeout time.Duration) *HTTPGenerator {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGenerator{
		apiKey:  apiKey,
		apiBase: strings.TrimSuffix(apiBase, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate sends the request and returns the raw completion text.
func (g *HTTPGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	body := map[string]any{
		"model":       g.model,
		"messages":    req.Messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if req.Tracking != "" {
		body["user"] = req.Tracking
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("generate: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("generate: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate: execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("generate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate: API status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("generate: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("generate: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
