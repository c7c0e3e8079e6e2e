package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vivarium-collective/vivarium/internal/cron"
	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/store"
)

// lastOutcomeKey remembers where the outcome-learning phase left off.
const lastOutcomeKey = "heartbeat_last_outcome_at"

type schedulesResult struct {
	Evaluated int      `json:"evaluated"`
	Fired     []string `json:"fired,omitempty"`
	Triggers  any      `json:"triggers,omitempty"`
}

// phaseSchedules evaluates cron schedules and trigger rules. A schedule
// fires only when the expression matches in its own timezone, the 60s dedup
// window has passed, and this tick wins the conditional fire record.
func (c *Controller) phaseSchedules(ctx context.Context, now time.Time) (any, error) {
	schedules, err := c.store.ListSchedules(true)
	if err != nil {
		return nil, err
	}

	res := &schedulesResult{Evaluated: len(schedules)}
	for _, sc := range schedules {
		if !cron.ShouldFire(sc.CronExpr, sc.Timezone, sc.LastFiredAt, now) {
			continue
		}
		next := cron.NextFireAt(sc.CronExpr, sc.Timezone, now)
		won, err := c.store.MarkScheduleFired(sc.ID, now, next)
		if err != nil {
			slog.Warn("Schedule fire record failed", "schedule", sc.Name, "error", err)
			continue
		}
		if !won {
			continue
		}
		if _, err := c.store.EnqueueWorkItem(&store.WorkItem{
			ID:             uuid.NewString(),
			AgentID:        sc.AgentID,
			Payload:        sc.Prompt,
			Source:         "schedule",
			SourceID:       sc.Name,
			TimeoutSeconds: sc.TimeoutSeconds,
		}); err != nil {
			slog.Warn("Schedule work enqueue failed", "schedule", sc.Name, "error", err)
			continue
		}
		slog.Info("Schedule fired", "schedule", sc.Name, "agent", sc.AgentID, "next", next)
		_, _ = c.bus.Emit(ctx, sc.AgentID, events.KindScheduleFired, sc.Name, "",
			nil, map[string]any{"schedule": sc.Name})
		res.Fired = append(res.Fired, sc.Name)
	}

	triggers, err := c.triggers.Evaluate(ctx, now)
	if err != nil {
		return nil, err
	}
	res.Triggers = triggers
	return res, nil
}

func (c *Controller) phaseReactions(ctx context.Context, now time.Time) (any, error) {
	return c.reactions.Process(ctx, now)
}

type staleResult struct {
	Scanned  int      `json:"scanned"`
	Requeued []string `json:"requeued,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// phaseStaleRecovery sweeps running work items whose last progress predates
// the liveness timeout. Time-based only: a slow worker and a dead one look
// the same here, so a recovered item may race its still-live worker. The
// conditional updates in the store keep that race harmless.
func (c *Controller) phaseStaleRecovery(ctx context.Context, now time.Time) (any, error) {
	cutoff := now.Add(-c.cfg.StaleAfter)
	stale, err := c.store.StaleRunningItems(cutoff)
	if err != nil {
		return nil, err
	}

	res := &staleResult{Scanned: len(stale)}
	for _, w := range stale {
		requeue := w.Attempts < c.cfg.RequeueAttempts
		ok, err := c.store.FailStaleItem(w.ID, requeue)
		if err != nil || !ok {
			continue
		}
		if requeue {
			res.Requeued = append(res.Requeued, w.ID)
		} else {
			res.Failed = append(res.Failed, w.ID)
		}
		slog.Info("Stale work item recovered", "item", w.ID, "agent", w.AgentID, "requeued", requeue)
		_, _ = c.bus.Emit(ctx, w.AgentID, events.KindStaleRecovery, w.Source, "",
			nil, map[string]any{"work_item": w.ID, "requeued": requeue})
	}
	return res, nil
}

type roundtableResult struct {
	Due      bool   `json:"due"`
	Enqueued string `json:"enqueued,omitempty"`
	Skipped  string `json:"skipped,omitempty"`
}

// phaseRoundtable enqueues the roundtable conversation when its cron is
// due and none is already in flight. Only the scheduling trigger lives
// here; the conversation itself is external.
func (c *Controller) phaseRoundtable(ctx context.Context, now time.Time) (any, error) {
	res := &roundtableResult{}
	if !cron.Matches(c.cfg.RoundtableCron, cron.InZone(now, c.cfg.RoundtableTimezone)) {
		return res, nil
	}
	res.Due = true

	active, err := c.store.CountActiveWork("", "roundtable")
	if err != nil {
		return nil, err
	}
	if active > 0 {
		res.Skipped = "roundtable already in flight"
		return res, nil
	}

	w, err := c.store.EnqueueWorkItem(&store.WorkItem{
		ID:      uuid.NewString(),
		AgentID: c.cfg.RoundtableAgent,
		Payload: "convene the roundtable",
		Source:  "roundtable",
	})
	if err != nil {
		return nil, err
	}
	res.Enqueued = w.ID
	slog.Info("Roundtable enqueued", "item", w.ID)
	return res, nil
}

type outcomeResult struct {
	Recorded int `json:"recorded"`
}

// phaseOutcomeLearning turns work completed since the previous tick into
// outcome events, which feed the trigger/reaction engines next tick.
func (c *Controller) phaseOutcomeLearning(ctx context.Context, now time.Time) (any, error) {
	since := now.Add(-time.Hour)
	if v, err := c.store.GetSetting(lastOutcomeKey); err == nil {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}

	completed, err := c.store.CompletedWorkSince(since)
	if err != nil {
		return nil, err
	}
	for _, w := range completed {
		_, _ = c.bus.Emit(ctx, w.AgentID, events.KindOutcome, w.Source, "",
			[]string{"outcome", w.Status}, map[string]any{"work_item": w.ID, "status": w.Status, "source": w.Source})
	}
	_ = c.store.SetSetting(lastOutcomeKey, now.Format(time.RFC3339))
	return &outcomeResult{Recorded: len(completed)}, nil
}

type initiativesResult struct {
	Queued []string `json:"queued,omitempty"`
}

// phaseInitiatives nudges idle agents: roster members with no active work
// and no event inside the idle window get an initiative work item. Bounded
// per tick so a fully idle collective does not flood the queue.
func (c *Controller) phaseInitiatives(ctx context.Context, now time.Time) (any, error) {
	res := &initiativesResult{}
	since := now.Add(-c.cfg.InitiativeIdle)
	for _, agent := range c.cfg.Roster {
		if len(res.Queued) >= c.cfg.MaxInitiatives {
			break
		}
		active, err := c.store.CountActiveWork(agent, "")
		if err != nil {
			return nil, err
		}
		if active > 0 {
			continue
		}
		recent, err := c.store.RecentEvents("", agent, since, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			continue
		}
		w, err := c.store.EnqueueWorkItem(&store.WorkItem{
			ID:      uuid.NewString(),
			AgentID: agent,
			Payload: "pursue an initiative of your own choosing",
			Source:  "initiative",
		})
		if err != nil {
			return nil, err
		}
		res.Queued = append(res.Queued, agent)
		_, _ = c.bus.Emit(ctx, agent, events.KindInitiative, "", "",
			nil, map[string]any{"work_item": w.ID})
	}
	return res, nil
}

type expiryResult struct {
	Expired int64 `json:"expired"`
}

func (c *Controller) phaseProposalExpiry(ctx context.Context, now time.Time) (any, error) {
	n, err := c.store.ExpireProposalsBefore(now.Add(-c.cfg.ProposalTTL))
	if err != nil {
		return nil, err
	}
	if n > 0 {
		slog.Info("Stale mission proposals expired", "count", n)
	}
	return &expiryResult{Expired: n}, nil
}

type freshnessResult struct {
	Fresh         bool   `json:"fresh"`
	LastPublished string `json:"last_published,omitempty"`
}

// phaseArtifactFreshness emits a nudge event when the collective has not
// published anything inside the freshness window.
func (c *Controller) phaseArtifactFreshness(ctx context.Context, now time.Time) (any, error) {
	age, ever, err := c.content.LatestPublishedAge(now)
	if err != nil {
		return nil, err
	}
	res := &freshnessResult{Fresh: true}
	if ever {
		res.LastPublished = now.Add(-age).Format(time.RFC3339)
	}
	if !ever || age > c.cfg.FreshnessWindow {
		res.Fresh = false
		_, _ = c.bus.Emit(ctx, "system", events.KindArtifactStale, "", "no recent published content",
			[]string{"content"}, nil)
	}
	return res, nil
}
