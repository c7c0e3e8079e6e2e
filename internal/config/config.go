// Package config provides configuration types and loading for vivarium.
package config

import (
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Gateway, Heartbeat, Generation, Events.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Gateway    GatewayConfig    `json:"gateway"`
	Heartbeat  HeartbeatConfig  `json:"heartbeat"`
	Generation GenerationConfig `json:"generation"`
	Events     EventsConfig     `json:"events"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// GatewayConfig configures the HTTP surface.
type GatewayConfig struct {
	Addr         string `json:"addr" envconfig:"ADDR"`
	SharedSecret string `json:"sharedSecret" envconfig:"SECRET"`
}

// HeartbeatConfig tunes the tick controller.
type HeartbeatConfig struct {
	PhaseBudget        time.Duration `json:"phaseBudget" envconfig:"PHASE_BUDGET"`
	StaleAfter         time.Duration `json:"staleAfter" envconfig:"STALE_AFTER"`
	RequeueAttempts    int           `json:"requeueAttempts" envconfig:"REQUEUE_ATTEMPTS"`
	RoundtableCron     string        `json:"roundtableCron" envconfig:"ROUNDTABLE_CRON"`
	RoundtableTimezone string        `json:"roundtableTimezone" envconfig:"ROUNDTABLE_TZ"`
	RoundtableAgent    string        `json:"roundtableAgent" envconfig:"ROUNDTABLE_AGENT"`
	InitiativeIdle     time.Duration `json:"initiativeIdle" envconfig:"INITIATIVE_IDLE"`
	MaxInitiatives     int           `json:"maxInitiatives" envconfig:"MAX_INITIATIVES"`
	ProposalTTL        time.Duration `json:"proposalTTL" envconfig:"PROPOSAL_TTL"`
	FreshnessWindow    time.Duration `json:"freshnessWindow" envconfig:"FRESHNESS_WINDOW"`
	Roster             []string      `json:"roster"`
	FallbackOwner      string        `json:"fallbackOwner" envconfig:"FALLBACK_OWNER"`
	AutoApproveGoals   bool          `json:"autoApproveGoals" envconfig:"AUTO_APPROVE_GOALS"`
}

// GenerationConfig configures the text-generation collaborator endpoint.
type GenerationConfig struct {
	BaseURL     string        `json:"baseUrl" envconfig:"BASE_URL"`
	APIKey      string        `json:"apiKey" envconfig:"API_KEY"`
	Model       string        `json:"model" envconfig:"MODEL"`
	Timeout     time.Duration `json:"timeout" envconfig:"TIMEOUT"`
	MaxTokens   int           `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64       `json:"temperature" envconfig:"TEMPERATURE"`
}

// EventsConfig configures the optional Kafka event mirror.
type EventsConfig struct {
	MirrorEnabled bool   `json:"mirrorEnabled" envconfig:"MIRROR_ENABLED"`
	MirrorBrokers string `json:"mirrorBrokers" envconfig:"MIRROR_BROKERS"`
	MirrorTopic   string `json:"mirrorTopic" envconfig:"MIRROR_TOPIC"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "", // resolved to ~/.vivarium at load time
		},
		Gateway: GatewayConfig{
			Addr: "127.0.0.1:8710",
		},
		Heartbeat: HeartbeatConfig{
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
			Roster:             []string{"archivist", "essayist", "provocateur", "moderator"},
			FallbackOwner:      "moderator",
		},
		Generation: GenerationConfig{
			Model:       "default",
			Timeout:     60 * time.Second,
			MaxTokens:   4096,
			Temperature: 0.3,
		},
		Events: EventsConfig{
			MirrorTopic: "vivarium.events",
		},
	}
}
