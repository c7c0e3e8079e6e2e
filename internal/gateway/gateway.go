// Package gateway is the HTTP surface of the control plane: the heartbeat
// tick endpoint, session-completion hooks, and a status probe. The shared
// secret and the global kill switch gate a tick before any phase runs;
// everything past that gate is phase-isolated.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vivarium-collective/vivarium/internal/content"
	"github.com/vivarium-collective/vivarium/internal/heartbeat"
	"github.com/vivarium-collective/vivarium/internal/missions"
	"github.com/vivarium-collective/vivarium/internal/store"
)

// Config holds gateway settings.
type Config struct {
	Addr string `json:"addr" envconfig:"GATEWAY_ADDR"`
	// SharedSecret authorizes tick and hook calls. Empty disables auth
	// (local development only).
	SharedSecret string `json:"sharedSecret" envconfig:"GATEWAY_SECRET"`
}

func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:8710"}
}

// Server wires the HTTP handlers to the control plane.
type Server struct {
	cfg        Config
	store      *store.Store
	controller *heartbeat.Controller
	content    *content.Service
	extractor  *missions.Extractor
}

func NewServer(cfg Config, st *store.Store, ctrl *heartbeat.Controller, cs *content.Service, ex *missions.Extractor) *Server {
	return &Server{cfg: cfg, store: st, controller: ctrl, content: cs, extractor: ex}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/heartbeat/tick", s.handleTick)
	mux.HandleFunc("/api/sessions/complete", s.handleSessionComplete)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

// ListenAndServe blocks serving the gateway.
func (s *Server) ListenAndServe() error {
	slog.Info("Gateway listening", "addr", s.cfg.Addr)
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// authorized checks the Bearer shared secret. An empty configured secret
// disables the check.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.SharedSecret == "" {
		return true
	}
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	return token == s.cfg.SharedSecret
}

// handleTick runs one heartbeat tick. Authorization and the kill switch
// are fail-fast: they run before any phase. A partial phase failure still
// returns 200 with the full report.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.store.HeartbeatEnabled() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	report := s.controller.Tick(r.Context())
	writeJSON(w, http.StatusOK, report)
}

// sessionCompleteRequest is the payload posted by the session runner when
// a conversation finishes.
type sessionCompleteRequest struct {
	SessionID  string `json:"session_id"`
	Source     string `json:"source"` // e.g. "schedule", "roundtable", "review:<draft_id>"
	Format     string `json:"format"`
	AgentID    string `json:"agent_id"`
	Transcript string `json:"transcript"`
}

// handleSessionComplete routes a finished conversation into the content
// and mission pipelines. Validation failures drop the artifact and report
// it; they are never fatal to the caller.
func (s *Server) handleSessionComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var req sessionCompleteRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SessionID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	result := map[string]any{"session_id": req.SessionID}

	if draftID, ok := strings.CutPrefix(req.Source, "review:"); ok {
		d, err := s.content.ApplyReview(r.Context(), draftID, req.Transcript)
		if err != nil {
			slog.Warn("Review application failed", "draft", draftID, "error", err)
			result["review_error"] = err.Error()
		} else {
			result["draft_status"] = d.Status
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	draft, err := s.content.ExtractDraft(r.Context(), req.SessionID, req.AgentID, req.Transcript)
	if err != nil {
		slog.Warn("Draft extraction failed", "session", req.SessionID, "error", err)
		result["draft_error"] = err.Error()
	} else if draft != nil {
		result["draft_id"] = draft.ID
	}

	submitted, err := s.extractor.Extract(r.Context(), &missions.Artifact{
		SessionID:  req.SessionID,
		Format:     req.Format,
		ProposerID: req.AgentID,
		Transcript: req.Transcript,
	})
	if err != nil {
		slog.Warn("Mission extraction failed", "session", req.SessionID, "error", err)
		result["mission_error"] = err.Error()
	} else {
		result["missions_submitted"] = len(submitted)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending, _ := s.store.CountActiveWork("", "")
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                s.store.HeartbeatEnabled(),
		"heartbeat_enabled": s.store.HeartbeatEnabled(),
		"active_work":       pending,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
