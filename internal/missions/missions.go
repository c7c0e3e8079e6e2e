// Package missions converts conversation artifacts into schema-validated
// mission proposals. Generated output passes a closed step-kind whitelist
// and a closed agent roster before anything is submitted.
package missions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vivarium-collective/vivarium/internal/generate"
	"github.com/vivarium-collective/vivarium/internal/store"
)

// StepKinds is the closed whitelist of mission step kinds. Steps outside
// it are filtered; a mission left with zero valid steps is dropped whole.
var StepKinds = map[string]bool{
	"research":         true,
	"draft_content":    true,
	"start_discussion": true,
	"review_content":   true,
	"publish_content":  true,
	"coordinate":       true,
}

// eligibleFormats gates which conversation formats are mined for missions.
var eligibleFormats = map[string]bool{
	"roundtable": true,
	"planning":   true,
	"debate":     true,
}

// maxMissions caps how many missions one artifact may yield.
const maxMissions = 3

// SubmitResult is the outcome of one proposal submission.
type SubmitResult struct {
	Success    bool   `json:"success"`
	ProposalID string `json:"proposal_id,omitempty"`
	MissionID  string `json:"mission_id,omitempty"`
}

// Submitter accepts validated proposals. It is the extractor's only side
// effect; auto-approval policy lives behind it.
type Submitter interface {
	SubmitProposal(ctx context.Context, agentID, title, description string, steps []store.MissionStep, source, sourceTraceID string) (*SubmitResult, error)
}

// Artifact is the conversation record handed to the extractor.
type Artifact struct {
	SessionID  string
	Format     string
	ProposerID string
	Transcript string
}

// Extractor mines artifacts for missions.
type Extractor struct {
	gen       generate.Generator
	submitter Submitter
	// roster is the closed set of agents a mission may be assigned to.
	roster map[string]bool
	// fallbackOwner receives missions whose assignee is absent or unknown.
	fallbackOwner string
}

func NewExtractor(gen generate.Generator, sub Submitter, roster []string, fallbackOwner string) *Extractor {
	set := make(map[string]bool, len(roster))
	for _, a := range roster {
		set[a] = true
	}
	return &Extractor{gen: gen, submitter: sub, roster: set, fallbackOwner: fallbackOwner}
}

type rawMission struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Steps       []struct {
		Kind    string `json:"kind"`
		Payload string `json:"payload"`
	} `json:"steps"`
}

type extractionOutput struct {
	Missions []rawMission `json:"missions"`
}

const extractionPrompt = `You are reading the transcript of a completed agent conversation.
Identify up to 3 concrete missions the participants committed to. Respond with JSON only:
{"missions": [{"title": string, "description": string, "owner": string,
  "steps": [{"kind": "research"|"draft_content"|"start_discussion"|"review_content"|"publish_content"|"coordinate", "payload": string}]}]}
If no actionable missions were agreed, respond {"missions": []}.`

// Extract mines an artifact and submits every surviving mission. Artifacts
// in non-eligible formats are skipped outright. Returns the submission
// results for missions that passed validation.
func (e *Extractor) Extract(ctx context.Context, art *Artifact) ([]*SubmitResult, error) {
	if !eligibleFormats[art.Format] {
		slog.Debug("Mission extraction skipped: ineligible format", "format", art.Format, "session", art.SessionID)
		return nil, nil
	}

	raw, err := e.gen.Generate(ctx, &generate.Request{
		Messages: []generate.Message{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: art.Transcript},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
		Tracking:    "mission_extraction:" + art.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("missions: extraction call: %w", err)
	}

	var out extractionOutput
	if err := generate.DecodeInto(raw, &out); err != nil {
		return nil, fmt.Errorf("missions: extraction output: %w", err)
	}
	if len(out.Missions) > maxMissions {
		out.Missions = out.Missions[:maxMissions]
	}

	var results []*SubmitResult
	for _, m := range out.Missions {
		steps := validSteps(m)
		if len(steps) == 0 {
			slog.Debug("Mission dropped: no valid steps", "title", m.Title)
			continue
		}
		title := strings.TrimSpace(m.Title)
		if title == "" {
			continue
		}
		owner := m.Owner
		if !e.roster[owner] {
			owner = e.fallbackOwner
		}

		res, err := e.submitter.SubmitProposal(ctx, owner, title, m.Description, steps, "mission_extraction", art.SessionID)
		if err != nil {
			slog.Warn("Mission submission failed", "title", title, "error", err)
			continue
		}
		slog.Info("Mission proposed", "title", title, "owner", owner, "steps", len(steps))
		results = append(results, res)
	}
	return results, nil
}

// validSteps filters a mission's steps against the whitelist, keeping order.
func validSteps(m rawMission) []store.MissionStep {
	var steps []store.MissionStep
	for _, s := range m.Steps {
		if !StepKinds[s.Kind] {
			continue
		}
		steps = append(steps, store.MissionStep{Kind: s.Kind, Payload: s.Payload})
	}
	return steps
}
