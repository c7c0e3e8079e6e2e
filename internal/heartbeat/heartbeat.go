// Package heartbeat sequences the control plane's periodic work. One tick
// runs eight phases in a fixed order, each isolated so a failing phase
// reports an error in its slot and the tick continues. Every tick leaves
// one audit row and one summary event behind, failures included.
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vivarium-collective/vivarium/internal/content"
	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/reaction"
	"github.com/vivarium-collective/vivarium/internal/store"
	"github.com/vivarium-collective/vivarium/internal/trigger"
)

// Config holds heartbeat tuning.
type Config struct {
	// PhaseBudget is the cooperative per-phase deadline. Phases that
	// ignore their context are not forcibly cancelled.
	PhaseBudget time.Duration `json:"phaseBudget"`
	// StaleAfter is how long a running work item may go without progress.
	StaleAfter time.Duration `json:"staleAfter"`
	// RequeueAttempts is how many attempts a stale item gets before it is
	// failed instead of requeued.
	RequeueAttempts int `json:"requeueAttempts"`
	// RoundtableCron schedules the collective roundtable conversation.
	RoundtableCron     string `json:"roundtableCron"`
	RoundtableTimezone string `json:"roundtableTimezone"`
	RoundtableAgent    string `json:"roundtableAgent"`
	// InitiativeIdle is how long an agent must be silent before it is
	// handed an initiative prompt.
	InitiativeIdle time.Duration `json:"initiativeIdle"`
	// MaxInitiatives bounds initiative work items queued per tick.
	MaxInitiatives int `json:"maxInitiatives"`
	// ProposalTTL expires missions that sat unapproved too long.
	ProposalTTL time.Duration `json:"proposalTTL"`
	// FreshnessWindow is the longest acceptable gap between published
	// artifacts before the collective is nudged.
	FreshnessWindow time.Duration `json:"freshnessWindow"`
	// Roster is the closed set of agent ids.
	Roster []string `json:"roster"`
}

// DefaultConfig returns sensible heartbeat defaults.
func DefaultConfig() Config {
	return Config{
		PhaseBudget:        10 * time.Second,
		StaleAfter:         15 * time.Minute,
		RequeueAttempts:    2,
		RoundtableCron:     "0 18 * * *",
		RoundtableTimezone: "UTC",
		RoundtableAgent:    "moderator",
		InitiativeIdle:     6 * time.Hour,
		MaxInitiatives:     3,
		ProposalTTL:        72 * time.Hour,
		FreshnessWindow:    48 * time.Hour,
	}
}

// Report is the structured result of one tick: one slot per phase, in
// execution order. A slot holds either the phase's own result or
// {"error": message}.
type Report struct {
	StartedAt  time.Time                  `json:"started_at"`
	DurationMs int64                      `json:"duration_ms"`
	Phases     map[string]json.RawMessage `json:"phases"`
	Order      []string                   `json:"order"`
	Failed     []string                   `json:"failed,omitempty"`
}

// Controller runs heartbeat ticks. It holds no timer of its own: an
// external caller (HTTP endpoint, CLI) invokes Tick.
type Controller struct {
	cfg       Config
	store     *store.Store
	bus       *events.Bus
	triggers  *trigger.Engine
	reactions *reaction.Engine
	content   *content.Service
}

func NewController(cfg Config, st *store.Store, bus *events.Bus, tr *trigger.Engine, re *reaction.Engine, cs *content.Service) *Controller {
	if cfg.PhaseBudget <= 0 {
		cfg.PhaseBudget = 10 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.MaxInitiatives <= 0 {
		cfg.MaxInitiatives = 3
	}
	return &Controller{cfg: cfg, store: st, bus: bus, triggers: tr, reactions: re, content: cs}
}

type phase struct {
	name string
	run  func(ctx context.Context, now time.Time) (any, error)
}

// Tick executes all phases in order. No phase failure aborts the tick;
// each failure lands in its own report slot. The audit row and summary
// event are written regardless of partial failure.
func (c *Controller) Tick(ctx context.Context) *Report {
	start := time.Now().UTC()
	report := &Report{
		StartedAt: start,
		Phases:    make(map[string]json.RawMessage),
	}

	phases := []phase{
		{"schedules", c.phaseSchedules},
		{"reactions", c.phaseReactions},
		{"stale_recovery", c.phaseStaleRecovery},
		{"roundtable", c.phaseRoundtable},
		{"outcome_learning", c.phaseOutcomeLearning},
		{"initiatives", c.phaseInitiatives},
		{"proposal_expiry", c.phaseProposalExpiry},
		{"artifact_freshness", c.phaseArtifactFreshness},
	}

	for _, p := range phases {
		report.Order = append(report.Order, p.name)
		result, err := c.runPhase(ctx, p, start)
		if err != nil {
			report.Failed = append(report.Failed, p.name)
			report.Phases[p.name], _ = json.Marshal(map[string]string{"error": err.Error()})
			slog.Warn("Heartbeat phase failed", "phase", p.name, "error", err)
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			data = []byte(`{}`)
		}
		report.Phases[p.name] = data
	}

	report.DurationMs = time.Since(start).Milliseconds()
	c.record(ctx, report)
	return report
}

// runPhase isolates one phase: a panic becomes an error in the phase's
// slot, and the phase gets its own cooperative deadline.
func (c *Controller) runPhase(ctx context.Context, p phase, now time.Time) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phase panicked: %v", r)
		}
	}()
	pctx, cancel := context.WithTimeout(ctx, c.cfg.PhaseBudget)
	defer cancel()
	return p.run(pctx, now)
}

// record writes the tick's audit row and summary event; both best-effort.
func (c *Controller) record(ctx context.Context, report *Report) {
	status := "ok"
	if len(report.Failed) > 0 {
		status = "partial"
	}
	result, _ := json.Marshal(report)
	if err := c.store.InsertActionRun("heartbeat", status, string(result), time.Duration(report.DurationMs)*time.Millisecond); err != nil {
		slog.Warn("Heartbeat audit insert failed", "error", err)
	}
	summary := fmt.Sprintf("%d phases, %d failed", len(report.Order), len(report.Failed))
	_, _ = c.bus.Emit(ctx, "system", events.KindHeartbeat, "heartbeat", summary,
		[]string{"heartbeat"}, map[string]any{"status": status, "duration_ms": report.DurationMs, "failed": report.Failed})
}
