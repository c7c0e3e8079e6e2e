// Package store is the collective's sole source of truth: a sqlite database
// holding schedules, rules, the event log, work items, drafts and proposals.
// All cooldown and status mutations are expressed as conditional updates so
// concurrent ticks cannot double-fire.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the control-plane database at dbPath and
// applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	// Best-effort migrations for older databases (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE work_items ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE mission_proposals ADD COLUMN source_id TEXT NOT NULL DEFAULT ''`)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// HeartbeatEnabled reports the global kill switch. Missing setting means
// enabled.
func (s *Store) HeartbeatEnabled() bool {
	v, err := s.GetSetting("heartbeat_enabled")
	if err != nil {
		return true
	}
	return v != "false" && v != "0"
}

// ---------------------------------------------------------------------------
// Cron schedules
// ---------------------------------------------------------------------------

func (s *Store) CreateSchedule(sc *CronSchedule) (*CronSchedule, error) {
	res, err := s.db.Exec(`INSERT INTO cron_schedules
		(name, agent_id, cron_expr, timezone, prompt, timeout_seconds, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.Name, sc.AgentID, sc.CronExpr, sc.Timezone, sc.Prompt, sc.TimeoutSeconds, sc.Enabled)
	if err != nil {
		return nil, fmt.Errorf("store: create schedule %q: %w", sc.Name, err)
	}
	sc.ID, _ = res.LastInsertId()
	return sc, nil
}

func (s *Store) ListSchedules(enabledOnly bool) ([]CronSchedule, error) {
	q := `SELECT id, name, agent_id, cron_expr, timezone, prompt, timeout_seconds, enabled, last_fired_at, next_fire_at
		FROM cron_schedules`
	if enabledOnly {
		q += ` WHERE enabled = 1`
	}
	q += ` ORDER BY id`
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CronSchedule
	for rows.Next() {
		var sc CronSchedule
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.AgentID, &sc.CronExpr, &sc.Timezone,
			&sc.Prompt, &sc.TimeoutSeconds, &sc.Enabled, &sc.LastFiredAt, &sc.NextFireAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// MarkScheduleFired records a fire conditionally: the update only lands if
// last_fired_at is still outside the 60s dedup bucket, so two concurrent
// ticks fire a schedule at most once. Returns whether this caller won.
func (s *Store) MarkScheduleFired(id int64, firedAt, nextFireAt time.Time) (bool, error) {
	res, err := s.db.Exec(`UPDATE cron_schedules
		SET last_fired_at = ?, next_fire_at = ?
		WHERE id = ? AND (last_fired_at IS NULL OR last_fired_at <= ?)`,
		firedAt.UTC(), nextFireAt.UTC(), id, firedAt.UTC().Add(-60*time.Second))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) SetScheduleEnabled(id int64, enabled bool) error {
	_, err := s.db.Exec(`UPDATE cron_schedules SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// ---------------------------------------------------------------------------
// Trigger rules
// ---------------------------------------------------------------------------

func (s *Store) CreateTriggerRule(r *TriggerRule) (*TriggerRule, error) {
	res, err := s.db.Exec(`INSERT INTO trigger_rules
		(name, trigger_event, lookback_minutes, min_count, target_agent, action, cooldown_minutes, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.TriggerEvent, r.LookbackMinutes, r.MinCount, r.TargetAgent, r.Action, r.CooldownMinutes, r.Enabled)
	if err != nil {
		return nil, fmt.Errorf("store: create trigger rule %q: %w", r.Name, err)
	}
	r.ID, _ = res.LastInsertId()
	return r, nil
}

func (s *Store) ListEnabledTriggerRules() ([]TriggerRule, error) {
	rows, err := s.db.Query(`SELECT id, name, trigger_event, lookback_minutes, min_count,
		target_agent, action, cooldown_minutes, enabled, last_fired_at
		FROM trigger_rules WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TriggerRule
	for rows.Next() {
		var r TriggerRule
		if err := rows.Scan(&r.ID, &r.Name, &r.TriggerEvent, &r.LookbackMinutes, &r.MinCount,
			&r.TargetAgent, &r.Action, &r.CooldownMinutes, &r.Enabled, &r.LastFiredAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimTriggerCooldown atomically records a rule fire if and only if the
// cooldown has elapsed. Check and record are one conditional update.
func (s *Store) ClaimTriggerCooldown(ruleID int64, now time.Time, cooldown time.Duration) (bool, error) {
	res, err := s.db.Exec(`UPDATE trigger_rules
		SET last_fired_at = ?
		WHERE id = ? AND (last_fired_at IS NULL OR last_fired_at <= ?)`,
		now.UTC(), ruleID, now.UTC().Add(-cooldown))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Reaction patterns
// ---------------------------------------------------------------------------

func (s *Store) CreateReactionPattern(p *ReactionPattern) (*ReactionPattern, error) {
	res, err := s.db.Exec(`INSERT INTO reaction_patterns
		(source_agent, tags, target_agent, reaction_kind, probability, cooldown_minutes, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SourceAgent, joinTags(p.Tags), p.TargetAgent, p.ReactionKind, p.Probability, p.CooldownMinutes, p.Enabled)
	if err != nil {
		return nil, fmt.Errorf("store: create reaction pattern: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

func (s *Store) ListEnabledReactionPatterns() ([]ReactionPattern, error) {
	rows, err := s.db.Query(`SELECT id, source_agent, tags, target_agent, reaction_kind,
		probability, cooldown_minutes, enabled
		FROM reaction_patterns WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReactionPattern
	for rows.Next() {
		var p ReactionPattern
		var tags string
		if err := rows.Scan(&p.ID, &p.SourceAgent, &tags, &p.TargetAgent, &p.ReactionKind,
			&p.Probability, &p.CooldownMinutes, &p.Enabled); err != nil {
			return nil, err
		}
		p.Tags = splitTags(tags)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClaimReactionCooldown atomically records a reaction fire for the
// (source, target, kind) key if the cooldown has elapsed. The insert path
// covers a key that has never fired; the conditional update path covers an
// existing key. Both are a single statement, so two racing events cannot
// each claim the same window.
func (s *Store) ClaimReactionCooldown(source, target, kind string, now time.Time, cooldown time.Duration) (bool, error) {
	res, err := s.db.Exec(`INSERT INTO reaction_fires (source_agent, target_agent, reaction_kind, last_fired_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_agent, target_agent, reaction_kind) DO UPDATE
		SET last_fired_at = excluded.last_fired_at
		WHERE reaction_fires.last_fired_at <= ?`,
		source, target, kind, now.UTC(), now.UTC().Add(-cooldown))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Agent events
// ---------------------------------------------------------------------------

func (s *Store) InsertEvent(evt *AgentEvent) (*AgentEvent, error) {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO agent_events (agent_id, kind, title, summary, tags, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.AgentID, evt.Kind, evt.Title, evt.Summary, joinTags(evt.Tags), evt.Metadata, evt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert event: %w", err)
	}
	evt.ID, _ = res.LastInsertId()
	return evt, nil
}

// RecentEvents returns events newer than since, optionally filtered by kind
// and agent. The window is mandatory: there is no unbounded scan over the
// event log.
func (s *Store) RecentEvents(kind, agentID string, since time.Time, limit int) ([]AgentEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	q := `SELECT id, agent_id, kind, title, summary, tags, metadata, created_at
		FROM agent_events WHERE created_at > ?`
	args := []any{since.UTC()}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	if agentID != "" {
		q += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentEvent
	for rows.Next() {
		var e AgentEvent
		var tags string
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Kind, &e.Title, &e.Summary, &tags, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Tags = splitTags(tags)
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventsAfter returns events with an id greater than afterID, oldest first.
// Used by the reaction engine to walk the log exactly once across ticks.
func (s *Store) EventsAfter(afterID int64, limit int) ([]AgentEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(`SELECT id, agent_id, kind, title, summary, tags, metadata, created_at
		FROM agent_events WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentEvent
	for rows.Next() {
		var e AgentEvent
		var tags string
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Kind, &e.Title, &e.Summary, &tags, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Tags = splitTags(tags)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) LatestEventID() (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(id) FROM agent_events`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (s *Store) CountEventsSince(kind string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM agent_events WHERE kind = ? AND created_at > ?`,
		kind, since.UTC()).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// Action runs
// ---------------------------------------------------------------------------

func (s *Store) InsertActionRun(action, status, result string, duration time.Duration) error {
	_, err := s.db.Exec(`INSERT INTO action_runs (action, status, result, duration_ms)
		VALUES (?, ?, ?, ?)`, action, status, result, duration.Milliseconds())
	return err
}

func (s *Store) ListActionRuns(limit int) ([]ActionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, action, status, result, duration_ms, created_at
		FROM action_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRun
	for rows.Next() {
		var r ActionRun
		if err := rows.Scan(&r.ID, &r.Action, &r.Status, &r.Result, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Work items
// ---------------------------------------------------------------------------

func (s *Store) EnqueueWorkItem(w *WorkItem) (*WorkItem, error) {
	now := time.Now().UTC()
	if w.TimeoutSeconds <= 0 {
		w.TimeoutSeconds = 300
	}
	if w.MaxRounds <= 0 {
		w.MaxRounds = 12
	}
	w.Status = WorkPending
	w.LastProgressAt = now
	w.CreatedAt = now
	_, err := s.db.Exec(`INSERT INTO work_items
		(id, agent_id, payload, source, source_id, model, timeout_seconds, max_rounds, status, last_progress_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.AgentID, w.Payload, w.Source, w.SourceID, w.Model,
		w.TimeoutSeconds, w.MaxRounds, w.Status, w.LastProgressAt, w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: enqueue work item: %w", err)
	}
	return w, nil
}

func (s *Store) GetWorkItem(id string) (*WorkItem, error) {
	row := s.db.QueryRow(`SELECT id, agent_id, payload, source, source_id, model,
		timeout_seconds, max_rounds, status, attempts, last_progress_at, created_at, completed_at
		FROM work_items WHERE id = ?`, id)
	var w WorkItem
	err := row.Scan(&w.ID, &w.AgentID, &w.Payload, &w.Source, &w.SourceID, &w.Model,
		&w.TimeoutSeconds, &w.MaxRounds, &w.Status, &w.Attempts, &w.LastProgressAt, &w.CreatedAt, &w.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CountActiveWork returns pending+running items, optionally scoped to one
// agent or one source.
func (s *Store) CountActiveWork(agentID, source string) (int, error) {
	q := `SELECT COUNT(*) FROM work_items WHERE status IN ('pending','running')`
	args := []any{}
	if agentID != "" {
		q += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	if source != "" {
		q += ` AND source = ?`
		args = append(args, source)
	}
	var n int
	err := s.db.QueryRow(q, args...).Scan(&n)
	return n, err
}

// ClaimWorkItem moves a pending item to running. Conditional on status so
// two workers cannot claim the same item.
func (s *Store) ClaimWorkItem(id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE work_items
		SET status = 'running', attempts = attempts + 1, last_progress_at = ?
		WHERE id = ? AND status = 'pending'`, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) TouchWorkItem(id string) error {
	_, err := s.db.Exec(`UPDATE work_items SET last_progress_at = ? WHERE id = ? AND status = 'running'`,
		time.Now().UTC(), id)
	return err
}

// CompleteWorkItem finishes a running item with done or failed status.
func (s *Store) CompleteWorkItem(id, status string) (bool, error) {
	if status != WorkDone && status != WorkFailed {
		return false, fmt.Errorf("store: invalid completion status %q", status)
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE work_items
		SET status = ?, completed_at = ?, last_progress_at = ?
		WHERE id = ? AND status = 'running'`, status, now, now, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// StaleRunningItems returns running items whose last progress predates cutoff.
func (s *Store) StaleRunningItems(cutoff time.Time) ([]WorkItem, error) {
	rows, err := s.db.Query(`SELECT id, agent_id, payload, source, source_id, model,
		timeout_seconds, max_rounds, status, attempts, last_progress_at, created_at, completed_at
		FROM work_items WHERE status = 'running' AND last_progress_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkItem
	for rows.Next() {
		var w WorkItem
		if err := rows.Scan(&w.ID, &w.AgentID, &w.Payload, &w.Source, &w.SourceID, &w.Model,
			&w.TimeoutSeconds, &w.MaxRounds, &w.Status, &w.Attempts, &w.LastProgressAt, &w.CreatedAt, &w.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// FailStaleItem marks a stale running item failed, or back to pending when
// attempts remain. Conditional on status = running so a worker that made
// progress in the meantime is untouched.
func (s *Store) FailStaleItem(id string, requeue bool) (bool, error) {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	if requeue {
		res, err = s.db.Exec(`UPDATE work_items SET status = 'pending', last_progress_at = ?
			WHERE id = ? AND status = 'running'`, now, id)
	} else {
		res, err = s.db.Exec(`UPDATE work_items SET status = 'failed', completed_at = ?, last_progress_at = ?
			WHERE id = ? AND status = 'running'`, now, now, id)
	}
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CompletedWorkSince returns items completed after the given time.
func (s *Store) CompletedWorkSince(since time.Time) ([]WorkItem, error) {
	rows, err := s.db.Query(`SELECT id, agent_id, payload, source, source_id, model,
		timeout_seconds, max_rounds, status, attempts, last_progress_at, created_at, completed_at
		FROM work_items WHERE status IN ('done','failed') AND completed_at > ?`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkItem
	for rows.Next() {
		var w WorkItem
		if err := rows.Scan(&w.ID, &w.AgentID, &w.Payload, &w.Source, &w.SourceID, &w.Model,
			&w.TimeoutSeconds, &w.MaxRounds, &w.Status, &w.Attempts, &w.LastProgressAt, &w.CreatedAt, &w.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Content drafts
// ---------------------------------------------------------------------------

func (s *Store) InsertDraft(d *ContentDraft) (*ContentDraft, error) {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = "draft"
	}
	notes, err := json.Marshal(d.ReviewerNotes)
	if err != nil {
		return nil, fmt.Errorf("store: marshal reviewer notes: %w", err)
	}
	if d.ReviewerNotes == nil {
		notes = []byte("[]")
	}
	_, err = s.db.Exec(`INSERT INTO content_drafts
		(id, author_id, content_type, title, body, status, reviewer_notes, source_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.AuthorID, d.ContentType, d.Title, d.Body, d.Status, string(notes), d.SourceSessionID, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert draft: %w", err)
	}
	return d, nil
}

func (s *Store) GetDraft(id string) (*ContentDraft, error) {
	return s.scanDraft(s.db.QueryRow(`SELECT id, author_id, content_type, title, body, status,
		reviewer_notes, source_session_id, published_at, created_at, updated_at
		FROM content_drafts WHERE id = ?`, id))
}

// GetDraftBySource returns the draft for a source session, or nil when none
// exists. The unique index on source_session_id is the dedup backstop.
func (s *Store) GetDraftBySource(sourceSessionID string) (*ContentDraft, error) {
	d, err := s.scanDraft(s.db.QueryRow(`SELECT id, author_id, content_type, title, body, status,
		reviewer_notes, source_session_id, published_at, created_at, updated_at
		FROM content_drafts WHERE source_session_id = ?`, sourceSessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *Store) scanDraft(row *sql.Row) (*ContentDraft, error) {
	var d ContentDraft
	var notes string
	err := row.Scan(&d.ID, &d.AuthorID, &d.ContentType, &d.Title, &d.Body, &d.Status,
		&notes, &d.SourceSessionID, &d.PublishedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if notes != "" {
		_ = json.Unmarshal([]byte(notes), &d.ReviewerNotes)
	}
	return &d, nil
}

// TransitionDraft moves a draft from one status to another conditionally on
// its current status. Returns false when the draft was not in `from`.
func (s *Store) TransitionDraft(id, from, to string) (bool, error) {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	if to == "published" {
		res, err = s.db.Exec(`UPDATE content_drafts SET status = ?, published_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`, to, now, now, id, from)
	} else {
		res, err = s.db.Exec(`UPDATE content_drafts SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`, to, now, id, from)
	}
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ReplaceReviewerNotes overwrites the notes list (automated review path).
func (s *Store) ReplaceReviewerNotes(id string, notes []string) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE content_drafts SET reviewer_notes = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), id)
	return err
}

// AppendReviewerNote appends one note (manual review path).
func (s *Store) AppendReviewerNote(id, note string) error {
	d, err := s.GetDraft(id)
	if err != nil {
		return err
	}
	return s.ReplaceReviewerNotes(id, append(d.ReviewerNotes, note))
}

// LatestPublishedAt returns the most recent publish time, or zero when no
// draft has ever been published.
func (s *Store) LatestPublishedAt() (time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRow(`SELECT MAX(published_at) FROM content_drafts WHERE status = 'published'`).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// ---------------------------------------------------------------------------
// Mission proposals
// ---------------------------------------------------------------------------

func (s *Store) InsertProposal(p *MissionProposal) (*MissionProposal, error) {
	p.CreatedAt = time.Now().UTC()
	if p.Status == "" {
		p.Status = ProposalProposed
	}
	steps, err := json.Marshal(p.Steps)
	if err != nil {
		return nil, fmt.Errorf("store: marshal steps: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO mission_proposals
		(id, proposer_id, title, description, steps, status, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProposerID, p.Title, p.Description, string(steps), p.Status, p.SourceID, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert proposal: %w", err)
	}
	return p, nil
}

func (s *Store) GetProposal(id string) (*MissionProposal, error) {
	row := s.db.QueryRow(`SELECT id, proposer_id, title, description, steps, status, source_id, created_at
		FROM mission_proposals WHERE id = ?`, id)
	var p MissionProposal
	var steps string
	err := row.Scan(&p.ID, &p.ProposerID, &p.Title, &p.Description, &steps, &p.Status, &p.SourceID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(steps), &p.Steps)
	return &p, nil
}

// UpdateProposalStatus is conditional on the current status.
func (s *Store) UpdateProposalStatus(id, from, to string) (bool, error) {
	res, err := s.db.Exec(`UPDATE mission_proposals SET status = ? WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ExpireProposalsBefore marks proposed missions older than cutoff expired
// and returns how many were expired.
func (s *Store) ExpireProposalsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE mission_proposals SET status = ?
		WHERE status = ? AND created_at < ?`, ProposalExpired, ProposalProposed, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
