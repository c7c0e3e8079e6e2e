package store

import (
	"time"
)

// CronSchedule is a recurring agent activity defined by a 5-field cron
// expression evaluated in the schedule's own timezone.
type CronSchedule struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	AgentID        string     `json:"agent_id"`
	CronExpr       string     `json:"cron_expr"`
	Timezone       string     `json:"timezone"` // IANA name, e.g. America/Chicago
	Prompt         string     `json:"prompt"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Enabled        bool       `json:"enabled"`
	LastFiredAt    *time.Time `json:"last_fired_at,omitempty"`
	NextFireAt     *time.Time `json:"next_fire_at,omitempty"`
}

// TriggerRule fires an action when enough matching events appear inside
// the rule's lookback window and the cooldown has elapsed.
type TriggerRule struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	TriggerEvent    string     `json:"trigger_event"`
	LookbackMinutes int        `json:"lookback_minutes"`
	MinCount        int        `json:"min_count"`
	TargetAgent     string     `json:"target_agent"`
	Action          string     `json:"action"`
	CooldownMinutes int        `json:"cooldown_minutes"`
	Enabled         bool       `json:"enabled"`
	LastFiredAt     *time.Time `json:"last_fired_at,omitempty"`
}

// ReactionPattern maps one agent's events to a reaction by another agent.
// SourceAgent may be "*" to match any agent. Cooldown bookkeeping lives in
// reaction_fires keyed by (source, target, kind).
type ReactionPattern struct {
	ID              int64    `json:"id"`
	SourceAgent     string   `json:"source_agent"`
	Tags            []string `json:"tags"`
	TargetAgent     string   `json:"target_agent"`
	ReactionKind    string   `json:"reaction_kind"`
	Probability     float64  `json:"probability"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	Enabled         bool     `json:"enabled"`
}

// AgentEvent is one append-only entry on the collective's event log.
// Events are immutable once written.
type AgentEvent struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agent_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Metadata  string    `json:"metadata,omitempty"` // JSON blob
	CreatedAt time.Time `json:"created_at"`
}

// ActionRun is the audit record for one heartbeat tick. Never mutated
// after insert.
type ActionRun struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	Result     string    `json:"result"` // JSON per-phase report
	DurationMs int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// WorkItem is a queued agent session awaiting or undergoing processing.
type WorkItem struct {
	ID             string     `json:"id"`
	AgentID        string     `json:"agent_id"`
	Payload        string     `json:"payload"`
	Source         string     `json:"source"`
	SourceID       string     `json:"source_id,omitempty"`
	Model          string     `json:"model,omitempty"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	MaxRounds      int        `json:"max_rounds"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastProgressAt time.Time  `json:"last_progress_at"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

const (
	WorkPending = "pending"
	WorkRunning = "running"
	WorkDone    = "done"
	WorkFailed  = "failed"
)

// ContentDraft is a generated artifact moving through the review lifecycle.
// At most one draft exists per source session.
type ContentDraft struct {
	ID              string     `json:"id"`
	AuthorID        string     `json:"author_id"`
	ContentType     string     `json:"content_type"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	Status          string     `json:"status"`
	ReviewerNotes   []string   `json:"reviewer_notes,omitempty"`
	SourceSessionID string     `json:"source_session_id"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MissionStep is one unit of a proposed mission. Kind is restricted to a
// closed whitelist at extraction time.
type MissionStep struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload,omitempty"`
}

// MissionProposal is a structured mission extracted from conversation text.
type MissionProposal struct {
	ID          string        `json:"id"`
	ProposerID  string        `json:"proposer_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Steps       []MissionStep `json:"steps"`
	Status      string        `json:"status"`
	SourceID    string        `json:"source_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

const (
	ProposalProposed = "proposed"
	ProposalApproved = "approved"
	ProposalRejected = "rejected"
	ProposalExpired  = "expired"
)

// Schema is the full sqlite schema, applied idempotently on open.
const Schema = `
CREATE TABLE IF NOT EXISTS cron_schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	agent_id TEXT NOT NULL,
	cron_expr TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	prompt TEXT NOT NULL DEFAULT '',
	timeout_seconds INTEGER NOT NULL DEFAULT 300,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	last_fired_at DATETIME,
	next_fire_at DATETIME
);

CREATE TABLE IF NOT EXISTS trigger_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	trigger_event TEXT NOT NULL,
	lookback_minutes INTEGER NOT NULL DEFAULT 60,
	min_count INTEGER NOT NULL DEFAULT 1,
	target_agent TEXT NOT NULL,
	action TEXT NOT NULL,
	cooldown_minutes INTEGER NOT NULL DEFAULT 60,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	last_fired_at DATETIME
);

CREATE TABLE IF NOT EXISTS reaction_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_agent TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '',
	target_agent TEXT NOT NULL,
	reaction_kind TEXT NOT NULL,
	probability REAL NOT NULL DEFAULT 1.0,
	cooldown_minutes INTEGER NOT NULL DEFAULT 60,
	enabled BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS reaction_fires (
	source_agent TEXT NOT NULL,
	target_agent TEXT NOT NULL,
	reaction_kind TEXT NOT NULL,
	last_fired_at DATETIME NOT NULL,
	PRIMARY KEY (source_agent, target_agent, reaction_kind)
);

CREATE TABLE IF NOT EXISTS agent_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agent_events_kind ON agent_events(kind, created_at);
CREATE INDEX IF NOT EXISTS idx_agent_events_agent ON agent_events(agent_id, created_at);

CREATE TABLE IF NOT EXISTS action_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	result TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS work_items (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	source_id TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	timeout_seconds INTEGER NOT NULL DEFAULT 300,
	max_rounds INTEGER NOT NULL DEFAULT 12,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_progress_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_work_items_status ON work_items(status, last_progress_at);
CREATE INDEX IF NOT EXISTS idx_work_items_agent ON work_items(agent_id, status);

CREATE TABLE IF NOT EXISTS content_drafts (
	id TEXT PRIMARY KEY,
	author_id TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'essay',
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	reviewer_notes TEXT NOT NULL DEFAULT '[]',
	source_session_id TEXT UNIQUE NOT NULL,
	published_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_content_drafts_status ON content_drafts(status);

CREATE TABLE IF NOT EXISTS mission_proposals (
	id TEXT PRIMARY KEY,
	proposer_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	steps TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'proposed',
	source_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_mission_proposals_status ON mission_proposals(status, created_at);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
