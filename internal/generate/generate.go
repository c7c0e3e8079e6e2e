// Package generate defines the text-generation collaborator interface and
// the single parse boundary through which generated output enters the
// control plane. Output is never trusted: it is parsed, repaired if
// needed, and validated by the caller before any durable state changes.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Message is one turn in a generation prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters for one generation call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// Tracking identifies the caller for usage attribution (e.g.
	// "content_extraction:sess-123").
	Tracking string
}

// Generator is the external text-generation collaborator. It may return
// empty or malformed text; callers own validation.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req *Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// DecodeInto parses generated text into v. It strips surrounding prose and
// code fences, tries strict JSON first, then falls back to jsonrepair for
// the usual model artifacts (trailing commas, single quotes, truncation).
// This is the only path by which generated JSON is decoded.
func DecodeInto(raw string, v any) error {
	text := extractJSON(raw)
	if text == "" {
		return fmt.Errorf("generate: no JSON object in output")
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("generate: unparseable output: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("generate: repaired output still invalid: %w", err)
	}
	return nil
}

// extractJSON trims code fences and returns the outermost {...} or [...]
// span, or "" when the text holds neither.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	end := strings.LastIndexByte(s, '}')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start = arrStart
		end = strings.LastIndexByte(s, ']')
	}
	if start < 0 {
		return ""
	}
	if end > start {
		return s[start : end+1]
	}
	// Truncated output: hand the tail to the repairer.
	return s[start:]
}
