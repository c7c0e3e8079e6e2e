package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vivarium-collective/vivarium/internal/content"
	"github.com/vivarium-collective/vivarium/internal/events"
	"github.com/vivarium-collective/vivarium/internal/generate"
	"github.com/vivarium-collective/vivarium/internal/heartbeat"
	"github.com/vivarium-collective/vivarium/internal/missions"
	"github.com/vivarium-collective/vivarium/internal/reaction"
	"github.com/vivarium-collective/vivarium/internal/store"
	"github.com/vivarium-collective/vivarium/internal/trigger"
)

const testSecret = "tick-secret"

func newTestServer(t *testing.T, gen generate.Generator) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vivarium.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if gen == nil {
		gen = generate.GeneratorFunc(func(ctx context.Context, req *generate.Request) (string, error) {
			return `{"hasContent": false}`, nil
		})
	}
	bus := events.NewBus(st, events.MirrorConfig{})
	cs := content.NewService(st, bus, gen)
	ctrl := heartbeat.NewController(heartbeat.DefaultConfig(), st, bus,
		trigger.NewEngine(st, bus), reaction.NewEngine(st, bus), cs)
	ex := missions.NewExtractor(gen, missions.NewStoreSubmitter(st, false),
		[]string{"moderator"}, "moderator")

	cfg := DefaultConfig()
	cfg.SharedSecret = testSecret
	return NewServer(cfg, st, ctrl, cs, ex), st
}

func doTick(t *testing.T, srv *Server, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/heartbeat/tick", nil)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestTickRejectsBadSecret(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for name, secret := range map[string]string{
		"missing": "",
		"wrong":   "not-the-secret",
	} {
		t.Run(name, func(t *testing.T) {
			rec := doTick(t, srv, secret)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestTickRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/heartbeat/tick", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestTickKillSwitch(t *testing.T) {
	srv, st := newTestServer(t, nil)
	if err := st.SetSetting("heartbeat_enabled", "false"); err != nil {
		t.Fatal(err)
	}

	rec := doTick(t, srv, testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "disabled" {
		t.Fatalf("body = %v", body)
	}

	// A disabled tick leaves no audit row behind.
	runs, err := st.ListActionRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("audit runs = %d, want 0", len(runs))
	}
}

func TestTickReturnsReport(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doTick(t, srv, testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var report heartbeat.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Order) != 8 || len(report.Phases) != 8 {
		t.Fatalf("report = %+v", report)
	}
}

func TestSessionCompleteExtractsDraft(t *testing.T) {
	gen := generate.GeneratorFunc(func(ctx context.Context, req *generate.Request) (string, error) {
		if strings.Contains(req.Tracking, "content_extraction") {
			return `{"hasContent": true, "title": "T", "body": "B", "contentType": "essay"}`, nil
		}
		return `{"missions": []}`, nil
	})
	srv, st := newTestServer(t, gen)

	payload := `{"session_id": "sess-1", "source": "schedule", "format": "solo", "agent_id": "essayist", "transcript": "..."}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/complete", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	draftID, _ := body["draft_id"].(string)
	if draftID == "" {
		t.Fatalf("body = %v", body)
	}
	d, err := st.GetDraft(draftID)
	if err != nil {
		t.Fatal(err)
	}
	if d.SourceSessionID != "sess-1" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestSessionCompleteRoutesReview(t *testing.T) {
	gen := generate.GeneratorFunc(func(ctx context.Context, req *generate.Request) (string, error) {
		return `{"verdicts": [], "consensus": "approved"}`, nil
	})
	srv, st := newTestServer(t, gen)
	if _, err := st.InsertDraft(&store.ContentDraft{
		ID: "d1", AuthorID: "essayist", Title: "T", Body: "B",
		Status: content.StatusReview, SourceSessionID: "orig-sess",
	}); err != nil {
		t.Fatal(err)
	}

	payload := `{"session_id": "sess-2", "source": "review:d1", "agent_id": "moderator", "transcript": "..."}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/complete", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["draft_status"] != content.StatusApproved {
		t.Fatalf("body = %v", body)
	}
}

func TestSessionCompleteBadPayload(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for name, payload := range map[string]string{
		"not json":   "nope",
		"no session": `{"source": "schedule"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/complete", strings.NewReader(payload))
			req.Header.Set("Authorization", "Bearer "+testSecret)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["heartbeat_enabled"] != true {
		t.Fatalf("body = %v", body)
	}
}
