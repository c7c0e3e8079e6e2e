// Package reaction maps one agent's events onto responses by another:
// pattern matching by source and tags, a probability roll, and an atomic
// per-(source,target,kind) cooldown claim that keeps reaction storms from
// cascading.
package reaction

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/store"
)

// Engine processes new events against reaction patterns.
type Engine struct {
	store *store.Store
	bus   *events.Bus
	// roll is swappable in tests; defaults to rand.Float64.
	roll func() float64
}

func NewEngine(st *store.Store, bus *events.Bus) *Engine {
	return &Engine{store: st, bus: bus, roll: rand.Float64}
}

// Result summarizes one processing pass.
type Result struct {
	EventsSeen int      `json:"events_seen"`
	Fired      []string `json:"fired,omitempty"`
	LastEvent  int64    `json:"last_event"`
}

// cursorKey tracks the last event id this engine has walked, so each event
// is considered exactly once across ticks.
const cursorKey = "reaction_event_cursor"

// Process walks events appended since the previous pass and fires matching
// patterns. The probability roll happens before the cooldown claim; a lost
// claim wins over a successful roll, which is what prevents two
// near-simultaneous events from both firing inside one cooldown window.
func (e *Engine) Process(ctx context.Context, now time.Time) (*Result, error) {
	cursor := e.loadCursor()
	evts, err := e.store.EventsAfter(cursor, 200)
	if err != nil {
		return nil, err
	}
	patterns, err := e.store.ListEnabledReactionPatterns()
	if err != nil {
		return nil, err
	}

	res := &Result{EventsSeen: len(evts), LastEvent: cursor}
	for _, evt := range evts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.LastEvent = evt.ID
		for _, p := range patterns {
			if !matches(&p, &evt) {
				continue
			}
			fired, err := e.fire(ctx, &p, &evt, now)
			if err != nil {
				slog.Warn("Reaction dispatch failed", "pattern", p.ID, "error", err)
				continue
			}
			if fired {
				res.Fired = append(res.Fired, p.ReactionKind)
			}
		}
	}

	if res.LastEvent != cursor {
		e.saveCursor(res.LastEvent)
	}
	return res, nil
}

// matches reports whether a pattern accepts an event: source is exact or
// the "*" wildcard, and the tag sets must intersect (a pattern with no
// tags matches any event). Self-reactions are never matched.
func matches(p *store.ReactionPattern, evt *store.AgentEvent) bool {
	if evt.AgentID == p.TargetAgent {
		return false
	}
	if p.SourceAgent != "*" && p.SourceAgent != evt.AgentID {
		return false
	}
	if len(p.Tags) == 0 {
		return true
	}
	for _, want := range p.Tags {
		for _, have := range evt.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

func (e *Engine) fire(ctx context.Context, p *store.ReactionPattern, evt *store.AgentEvent, now time.Time) (bool, error) {
	if e.roll() >= p.Probability {
		return false, nil
	}
	cooldown := time.Duration(p.CooldownMinutes) * time.Minute
	claimed, err := e.store.ClaimReactionCooldown(p.SourceAgent, p.TargetAgent, p.ReactionKind, now, cooldown)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if _, err := e.store.EnqueueWorkItem(&store.WorkItem{
		ID:       uuid.NewString(),
		AgentID:  p.TargetAgent,
		Payload:  p.ReactionKind,
		Source:   "reaction",
		SourceID: evt.Kind,
	}); err != nil {
		return false, err
	}

	slog.Info("Reaction fired", "source", evt.AgentID, "target", p.TargetAgent, "kind", p.ReactionKind)
	_, _ = e.bus.Emit(ctx, p.TargetAgent, events.KindReactionFired, p.ReactionKind, "",
		nil, map[string]any{"source_agent": evt.AgentID, "source_event": evt.ID, "kind": p.ReactionKind})
	return true, nil
}

func (e *Engine) loadCursor() int64 {
	v, err := e.store.GetSetting(cursorKey)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (e *Engine) saveCursor(id int64) {
	_ = e.store.SetSetting(cursorKey, strconv.FormatInt(id, 10))
}
