package cli

import (
	"fmt"
	"os"

	"github.com/vivarium-collective/vivarium/internal/config"
	"github.com/vivarium-collective/vivarium/internal/content"
	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/gateway"
	"github.com/vivarium-collective/vivarium/internal/generate"
	"github.com/vivarium-collective/vivarium/internal/heartbeat"
	"github.com/vivarium-collective/vivarium/internal/missions"
	"github.com/vivarium-collective/vivarium/internal/reaction"
	"github.com/vivarium-collective/vivarium/internal/store"
	"github.com/vivarium-collective/vivarium/internal/trigger"
)

// controlPlane bundles the wired components behind the CLI commands.
type controlPlane struct {
	cfg        *config.Config
	store      *store.Store
	bus        *events.Bus
	controller *heartbeat.Controller
	content    *content.Service
	extractor  *missions.Extractor
	gateway    *gateway.Server
}

// buildControlPlane loads config, opens the store, and wires the engines.
func buildControlPlane() (*controlPlane, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(st, events.MirrorConfig{
		Enabled: cfg.Events.MirrorEnabled,
		Brokers: cfg.Events.MirrorBrokers,
		Topic:   cfg.Events.MirrorTopic,
	})

	gen := generate.NewHTTPGenerator(cfg.Generation.APIKey, cfg.Generation.BaseURL,
		cfg.Generation.Model, cfg.Generation.Timeout)

	contentSvc := content.NewService(st, bus, gen)
	submitter := missions.NewStoreSubmitter(st, cfg.Heartbeat.AutoApproveGoals)
	extractor := missions.NewExtractor(gen, submitter, cfg.Heartbeat.Roster, cfg.Heartbeat.FallbackOwner)

	controller := heartbeat.NewController(heartbeat.Config{
		PhaseBudget:        cfg.Heartbeat.PhaseBudget,
		StaleAfter:         cfg.Heartbeat.StaleAfter,
		RequeueAttempts:    cfg.Heartbeat.RequeueAttempts,
		RoundtableCron:     cfg.Heartbeat.RoundtableCron,
		RoundtableTimezone: cfg.Heartbeat.RoundtableTimezone,
		RoundtableAgent:    cfg.Heartbeat.RoundtableAgent,
		InitiativeIdle:     cfg.Heartbeat.InitiativeIdle,
		MaxInitiatives:     cfg.Heartbeat.MaxInitiatives,
		ProposalTTL:        cfg.Heartbeat.ProposalTTL,
		FreshnessWindow:    cfg.Heartbeat.FreshnessWindow,
		Roster:             cfg.Heartbeat.Roster,
	}, st, bus, trigger.NewEngine(st, bus), reaction.NewEngine(st, bus), contentSvc)

	srv := gateway.NewServer(gateway.Config{
		Addr:         cfg.Gateway.Addr,
		SharedSecret: cfg.Gateway.SharedSecret,
	}, st, controller, contentSvc, extractor)

	return &controlPlane{
		cfg:        cfg,
		store:      st,
		bus:        bus,
		controller: controller,
		content:    contentSvc,
		extractor:  extractor,
		gateway:    srv,
	}, nil
}

func (cp *controlPlane) Close() {
	_ = cp.bus.Close()
	_ = cp.store.Close()
}
