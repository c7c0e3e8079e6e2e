// Package trigger evaluates event-driven rules: when enough events of a
// rule's kind land inside its lookback window and the cooldown has elapsed,
// the rule dispatches a work item at its target agent.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/store"
)

// Engine evaluates trigger rules against the recent event log.
type Engine struct {
	store *store.Store
	bus   *events.Bus
}

func NewEngine(st *store.Store, bus *events.Bus) *Engine {
	return &Engine{store: st, bus: bus}
}

// Result summarizes one evaluation pass.
type Result struct {
	Evaluated int      `json:"evaluated"`
	Fired     []string `json:"fired,omitempty"`
}

// Evaluate runs every enabled rule once. Scans are bounded by each rule's
// lookback window; the cooldown check and fire record are a single
// conditional update, so concurrent ticks cannot both fire one rule.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) (*Result, error) {
	rules, err := e.store.ListEnabledTriggerRules()
	if err != nil {
		return nil, err
	}

	res := &Result{Evaluated: len(rules)}
	for _, rule := range rules {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		fired, err := e.evaluateRule(ctx, &rule, now)
		if err != nil {
			slog.Warn("Trigger rule evaluation failed", "rule", rule.Name, "error", err)
			continue
		}
		if fired {
			res.Fired = append(res.Fired, rule.Name)
		}
	}
	return res, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule *store.TriggerRule, now time.Time) (bool, error) {
	lookback := time.Duration(rule.LookbackMinutes) * time.Minute
	if lookback <= 0 {
		lookback = time.Hour
	}
	count, err := e.store.CountEventsSince(rule.TriggerEvent, now.Add(-lookback))
	if err != nil {
		return false, err
	}
	minCount := rule.MinCount
	if minCount <= 0 {
		minCount = 1
	}
	if count < minCount {
		return false, nil
	}

	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	claimed, err := e.store.ClaimTriggerCooldown(rule.ID, now, cooldown)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if _, err := e.store.EnqueueWorkItem(&store.WorkItem{
		ID:       uuid.NewString(),
		AgentID:  rule.TargetAgent,
		Payload:  rule.Action,
		Source:   "trigger",
		SourceID: rule.Name,
	}); err != nil {
		return false, err
	}

	slog.Info("Trigger rule fired", "rule", rule.Name, "target", rule.TargetAgent, "action", rule.Action, "events", count)
	_, _ = e.bus.Emit(ctx, rule.TargetAgent, events.KindTriggerFired, rule.Name, "",
		nil, map[string]any{"rule": rule.Name, "action": rule.Action, "matched_events": count})
	return true, nil
}
