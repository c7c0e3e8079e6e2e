package generate

import (
	"testing"
)

type payload struct {
	Title      string `json:"title"`
	HasContent bool   `json:"hasContent"`
}

func TestDecodeIntoStrict(t *testing.T) {
	var p payload
	if err := DecodeInto(`{"title":"On Patience","hasContent":true}`, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Title != "On Patience" || !p.HasContent {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestDecodeIntoCodeFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"title\": \"x\", \"hasContent\": true}\n```\nDone."
	var p payload
	if err := DecodeInto(raw, &p); err != nil {
		t.Fatalf("decode fenced: %v", err)
	}
	if p.Title != "x" {
		t.Fatalf("title = %q", p.Title)
	}
}

func TestDecodeIntoRepairsMalformed(t *testing.T) {
	// Trailing comma and single quotes: strict parse fails, repair succeeds.
	raw := `{'title': 'y', 'hasContent': true,}`
	var p payload
	if err := DecodeInto(raw, &p); err != nil {
		t.Fatalf("decode malformed: %v", err)
	}
	if p.Title != "y" {
		t.Fatalf("title = %q", p.Title)
	}
}

func TestDecodeIntoNoJSON(t *testing.T) {
	var p payload
	if err := DecodeInto("I could not produce anything useful.", &p); err == nil {
		t.Fatal("expected error for output without JSON")
	}
	if err := DecodeInto("", &p); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestDecodeIntoSurroundingProse(t *testing.T) {
	raw := `Sure! {"title":"z","hasContent":false} Hope that helps.`
	var p payload
	if err := DecodeInto(raw, &p); err != nil {
		t.Fatalf("decode with prose: %v", err)
	}
	if p.HasContent {
		t.Fatal("hasContent should be false")
	}
}
