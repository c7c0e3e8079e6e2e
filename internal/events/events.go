// Package events is the append-only bus facade: every heartbeat phase emits
// through here and reads recent events through here. Events are persisted
// in the store; an optional Kafka mirror streams them out for observers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vivarium-collective/vivarium/internal/store"
)

// Well-known event kinds emitted by the control plane itself.
const (
	KindHeartbeat     = "heartbeat_tick"
	KindTriggerFired  = "trigger_fired"
	KindReactionFired = "reaction_fired"
	KindScheduleFired = "schedule_fired"
	KindStaleRecovery = "stale_work_recovered"
	KindOutcome       = "outcome_recorded"
	KindInitiative    = "initiative_queued"
	KindArtifactStale = "artifact_stale"
	KindDraftCreated  = "draft_created"
	KindDraftReviewed = "draft_reviewed"
)

// MirrorConfig configures the optional Kafka event mirror.
type MirrorConfig struct {
	Enabled bool   `json:"enabled" envconfig:"EVENTS_MIRROR_ENABLED"`
	Brokers string `json:"brokers" envconfig:"EVENTS_MIRROR_BROKERS"`
	Topic   string `json:"topic" envconfig:"EVENTS_MIRROR_TOPIC"`
}

// Bus persists events and fans them out to the mirror, best-effort.
type Bus struct {
	store  *store.Store
	writer *kafka.Writer
}

// NewBus creates an event bus over the store. The Kafka mirror is attached
// only when enabled and configured; mirror failures never fail an emit.
func NewBus(st *store.Store, cfg MirrorConfig) *Bus {
	b := &Bus{store: st}
	if cfg.Enabled && cfg.Brokers != "" && cfg.Topic != "" {
		b.writer = &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		}
		slog.Info("Event mirror enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	return b
}

// Emit appends one event to the log and mirrors it.
func (b *Bus) Emit(ctx context.Context, agentID, kind, title, summary string, tags []string, metadata map[string]any) (*store.AgentEvent, error) {
	var meta string
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			meta = string(data)
		}
	}
	evt, err := b.store.InsertEvent(&store.AgentEvent{
		AgentID:  agentID,
		Kind:     kind,
		Title:    title,
		Summary:  summary,
		Tags:     tags,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}
	b.mirror(ctx, evt)
	return evt, nil
}

// QueryRecent returns events inside the given window, never unbounded.
func (b *Bus) QueryRecent(kind, agentID string, window time.Duration, limit int) ([]store.AgentEvent, error) {
	if window <= 0 {
		window = time.Hour
	}
	return b.store.RecentEvents(kind, agentID, time.Now().UTC().Add(-window), limit)
}

func (b *Bus) mirror(ctx context.Context, evt *store.AgentEvent) {
	if b.writer == nil {
		return
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return
	}
	mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.writer.WriteMessages(mctx, kafka.Message{
		Key:   []byte(evt.AgentID),
		Value: value,
		Time:  evt.CreatedAt,
	}); err != nil {
		slog.Warn("Event mirror write failed", "error", err)
	}
}

// Close releases the mirror writer, if any.
func (b *Bus) Close() error {
	if b.writer != nil {
		return b.writer.Close()
	}
	return nil
}
