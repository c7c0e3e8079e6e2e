// Package content owns the draft lifecycle. Drafts only change state
// through the transition table here, and generated extraction/review output
// only touches a draft after validation at the parse boundary.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/generate"
	"github.com/vivarium-collective/vivarium/internal/store"
)

// Draft statuses.
const (
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusPublished = "published"
)

// Content types. Anything outside this set from the extraction call is
// coerced to essay.
const (
	TypeEssay     = "essay"
	TypeThread    = "thread"
	TypeStatement = "statement"
	TypePoem      = "poem"
	TypeManifesto = "manifesto"
)

const (
	maxTitleLen = 500
	maxBodyLen  = 50000
)

// transitions is the complete set of allowed edges. published is terminal;
// rejected loops back to draft for redrafting.
var transitions = map[string][]string{
	StatusDraft:    {StatusReview},
	StatusReview:   {StatusApproved, StatusRejected},
	StatusApproved: {StatusPublished},
	StatusRejected: {StatusDraft},
}

func allowed(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Service runs the draft lifecycle and its two generation pipelines.
type Service struct {
	store *store.Store
	bus   *events.Bus
	gen   generate.Generator
}

func NewService(st *store.Store, bus *events.Bus, gen generate.Generator) *Service {
	return &Service{store: st, bus: bus, gen: gen}
}

// Transition moves a draft along one allowed edge. Any edge outside the
// table is rejected with an error naming it.
func (s *Service) Transition(id, to string) (*store.ContentDraft, error) {
	d, err := s.store.GetDraft(id)
	if err != nil {
		return nil, fmt.Errorf("content: draft %s: %w", id, err)
	}
	if !allowed(d.Status, to) {
		return nil, fmt.Errorf("content: transition %s -> %s is not allowed", d.Status, to)
	}
	ok, err := s.store.TransitionDraft(id, d.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone moved the draft between our read and the update.
		return nil, fmt.Errorf("content: draft %s left status %s concurrently", id, d.Status)
	}
	return s.store.GetDraft(id)
}

// extractionResult is the shape the extraction call is asked to produce.
// Title and Body are typed any so a model returning numbers or objects is
// caught instead of silently stringified.
type extractionResult struct {
	Title       any    `json:"title"`
	Body        any    `json:"body"`
	ContentType string `json:"contentType"`
	HasContent  bool   `json:"hasContent"`
}

const extractionPrompt = `You are reviewing the transcript of a working conversation.
Decide whether it contains a publishable piece of writing. Respond with JSON only:
{"hasContent": bool, "title": string, "body": string, "contentType": "essay"|"thread"|"statement"|"poem"|"manifesto"}
If the conversation produced nothing publishable, respond {"hasContent": false}.`

// ExtractDraft turns a completed conversation into a draft, or nil when the
// conversation yielded nothing or a draft for this session already exists.
// The dedup check runs before the generation call so no tokens are spent on
// a session that already has a draft.
func (s *Service) ExtractDraft(ctx context.Context, sessionID, authorID, transcript string) (*store.ContentDraft, error) {
	existing, err := s.store.GetDraftBySource(sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.Debug("Draft extraction skipped: session already has a draft", "session", sessionID)
		return nil, nil
	}

	raw, err := s.gen.Generate(ctx, &generate.Request{
		Messages: []generate.Message{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.3,
		MaxTokens:   4096,
		Tracking:    "content_extraction:" + sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("content: extraction call: %w", err)
	}

	var result extractionResult
	if err := generate.DecodeInto(raw, &result); err != nil {
		return nil, fmt.Errorf("content: extraction output: %w", err)
	}
	if !result.HasContent {
		return nil, nil
	}
	title, ok := result.Title.(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("content: extraction returned non-string or empty title")
	}
	body, ok := result.Body.(string)
	if !ok || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("content: extraction returned non-string or empty body")
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	contentType := result.ContentType
	switch contentType {
	case TypeEssay, TypeThread, TypeStatement, TypePoem, TypeManifesto:
	default:
		contentType = TypeEssay
	}

	draft, err := s.store.InsertDraft(&store.ContentDraft{
		ID:              uuid.NewString(),
		AuthorID:        authorID,
		ContentType:     contentType,
		Title:           title,
		Body:            body,
		Status:          StatusDraft,
		SourceSessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Draft extracted", "draft", draft.ID, "author", authorID, "type", contentType)
	_, _ = s.bus.Emit(ctx, authorID, events.KindDraftCreated, title, "",
		[]string{"content", contentType}, map[string]any{"draft_id": draft.ID, "session": sessionID})
	return draft, nil
}

// reviewResult is the shape the consensus call is asked to produce.
type reviewResult struct {
	Verdicts []struct {
		Reviewer string `json:"reviewer"`
		Verdict  string `json:"verdict"`
		Note     string `json:"note"`
	} `json:"verdicts"`
	Consensus string `json:"consensus"`
}

const reviewPrompt = `You are summarizing a completed editorial review conversation.
Respond with JSON only:
{"verdicts": [{"reviewer": string, "verdict": "approve"|"reject", "note": string}], "consensus": "approved"|"rejected"|"mixed"}`

// ApplyReview runs the consensus call over a finished review conversation
// and applies the outcome. "mixed" leaves the draft in review for manual
// action. This automated path replaces reviewer notes outright; the manual
// path appends. The asymmetry is intentional and preserved from the
// original behavior.
func (s *Service) ApplyReview(ctx context.Context, draftID, transcript string) (*store.ContentDraft, error) {
	d, err := s.store.GetDraft(draftID)
	if err != nil {
		return nil, fmt.Errorf("content: draft %s: %w", draftID, err)
	}
	if d.Status != StatusReview {
		return nil, fmt.Errorf("content: draft %s is %s, not in review", draftID, d.Status)
	}

	raw, err := s.gen.Generate(ctx, &generate.Request{
		Messages: []generate.Message{
			{Role: "system", Content: reviewPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
		Tracking:    "content_review:" + draftID,
	})
	if err != nil {
		return nil, fmt.Errorf("content: review call: %w", err)
	}

	var result reviewResult
	if err := generate.DecodeInto(raw, &result); err != nil {
		return nil, fmt.Errorf("content: review output: %w", err)
	}

	notes := make([]string, 0, len(result.Verdicts))
	for _, v := range result.Verdicts {
		if v.Note != "" {
			notes = append(notes, fmt.Sprintf("%s (%s): %s", v.Reviewer, v.Verdict, v.Note))
		}
	}
	if len(notes) > 0 {
		if err := s.store.ReplaceReviewerNotes(draftID, notes); err != nil {
			return nil, err
		}
	}

	switch result.Consensus {
	case StatusApproved:
		_, err = s.Transition(draftID, StatusApproved)
	case StatusRejected:
		_, err = s.Transition(draftID, StatusRejected)
	case "mixed":
		slog.Info("Review consensus mixed; draft stays in review", "draft", draftID)
	default:
		return nil, fmt.Errorf("content: review returned unknown consensus %q", result.Consensus)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.store.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	_, _ = s.bus.Emit(ctx, d.AuthorID, events.KindDraftReviewed, d.Title, "",
		[]string{"content"}, map[string]any{"draft_id": draftID, "consensus": result.Consensus})
	return updated, nil
}

// ManualReview applies a human verdict: the note is appended (not
// replaced) and the transition follows the verdict.
func (s *Service) ManualReview(draftID, verdict, note string) (*store.ContentDraft, error) {
	if verdict != StatusApproved && verdict != StatusRejected {
		return nil, fmt.Errorf("content: manual verdict must be %s or %s, got %q", StatusApproved, StatusRejected, verdict)
	}
	if note != "" {
		if err := s.store.AppendReviewerNote(draftID, note); err != nil {
			return nil, err
		}
	}
	return s.Transition(draftID, verdict)
}

// Publish moves an approved draft to its terminal state.
func (s *Service) Publish(ctx context.Context, draftID string) (*store.ContentDraft, error) {
	d, err := s.Transition(draftID, StatusPublished)
	if err != nil {
		return nil, err
	}
	_, _ = s.bus.Emit(ctx, d.AuthorID, "content_published", d.Title, "",
		[]string{"content", d.ContentType}, map[string]any{"draft_id": d.ID})
	return d, nil
}

// LatestPublishedAge returns how long ago the collective last published,
// and false when nothing has ever been published.
func (s *Service) LatestPublishedAge(now time.Time) (time.Duration, bool, error) {
	at, err := s.store.LatestPublishedAt()
	if err != nil {
		return 0, false, err
	}
	if at.IsZero() {
		return 0, false, nil
	}
	return now.Sub(at), true, nil
}
