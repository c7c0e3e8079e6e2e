package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vivarium.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestScheduleFireDedup(t *testing.T) {
	st := newTestStore(t)
	sc, err := st.CreateSchedule(&CronSchedule{
		Name: "daily-writing", AgentID: "essayist", CronExpr: "0 12 * * *",
		Timezone: "UTC", Enabled: true,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	now := time.Now().UTC()
	next := now.Add(24 * time.Hour)

	won, err := st.MarkScheduleFired(sc.ID, now, next)
	if err != nil {
		t.Fatalf("mark fired: %v", err)
	}
	if !won {
		t.Fatal("first fire should win")
	}

	// A second fire 10 seconds later is inside the dedup bucket.
	won, err = st.MarkScheduleFired(sc.ID, now.Add(10*time.Second), next)
	if err != nil {
		t.Fatalf("mark fired again: %v", err)
	}
	if won {
		t.Fatal("fire inside the 60s bucket should lose")
	}

	// After the bucket passes it wins again.
	won, err = st.MarkScheduleFired(sc.ID, now.Add(90*time.Second), next)
	if err != nil {
		t.Fatalf("mark fired later: %v", err)
	}
	if !won {
		t.Fatal("fire after the bucket should win")
	}
}

func TestTriggerCooldownClaim(t *testing.T) {
	st := newTestStore(t)
	rule, err := st.CreateTriggerRule(&TriggerRule{
		Name: "debate-heats-up", TriggerEvent: "statement_published",
		LookbackMinutes: 60, MinCount: 1, TargetAgent: "moderator",
		Action: "open_discussion", CooldownMinutes: 120, Enabled: true,
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	now := time.Now().UTC()
	cooldown := 120 * time.Minute

	claimed, err := st.ClaimTriggerCooldown(rule.ID, now, cooldown)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	// Inside the cooldown the claim loses.
	claimed, err = st.ClaimTriggerCooldown(rule.ID, now.Add(60*time.Minute), cooldown)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("claim inside cooldown should lose")
	}

	claimed, err = st.ClaimTriggerCooldown(rule.ID, now.Add(121*time.Minute), cooldown)
	if err != nil || !claimed {
		t.Fatalf("claim after cooldown: claimed=%v err=%v", claimed, err)
	}
}

func TestReactionCooldownClaim(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	cooldown := 120 * time.Minute

	claimed, err := st.ClaimReactionCooldown("essayist", "provocateur", "rebuttal", now, cooldown)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	claimed, err = st.ClaimReactionCooldown("essayist", "provocateur", "rebuttal", now.Add(60*time.Minute), cooldown)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("claim 60min into a 120min cooldown should lose")
	}

	claimed, err = st.ClaimReactionCooldown("essayist", "provocateur", "rebuttal", now.Add(121*time.Minute), cooldown)
	if err != nil || !claimed {
		t.Fatalf("claim after cooldown: claimed=%v err=%v", claimed, err)
	}

	// A different key is independent.
	claimed, err = st.ClaimReactionCooldown("essayist", "archivist", "rebuttal", now.Add(61*time.Minute), cooldown)
	if err != nil || !claimed {
		t.Fatalf("independent key claim: claimed=%v err=%v", claimed, err)
	}
}

func TestEventWindowQuery(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().UTC().Add(-2 * time.Hour)

	for i, kind := range []string{"statement_published", "statement_published", "outcome_recorded"} {
		_, err := st.InsertEvent(&AgentEvent{
			AgentID: "essayist", Kind: kind, Title: "t",
			Tags:      []string{"content"},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	n, err := st.CountEventsSince("statement_published", base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	evts, err := st.RecentEvents("", "essayist", base.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(evts) != 3 {
		t.Errorf("recent = %d events, want 3", len(evts))
	}
	if len(evts[0].Tags) != 1 || evts[0].Tags[0] != "content" {
		t.Errorf("tags round-trip failed: %v", evts[0].Tags)
	}
}

func TestEventsAfterCursor(t *testing.T) {
	st := newTestStore(t)
	var lastID int64
	for i := 0; i < 3; i++ {
		evt, err := st.InsertEvent(&AgentEvent{AgentID: "a", Kind: "k"})
		if err != nil {
			t.Fatal(err)
		}
		lastID = evt.ID
	}

	evts, err := st.EventsAfter(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 3 {
		t.Fatalf("got %d events, want 3", len(evts))
	}
	evts, err = st.EventsAfter(lastID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 0 {
		t.Fatalf("got %d events after cursor, want 0", len(evts))
	}
}

func TestWorkItemLifecycle(t *testing.T) {
	st := newTestStore(t)
	w, err := st.EnqueueWorkItem(&WorkItem{ID: "w1", AgentID: "essayist", Source: "schedule"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if w.Status != WorkPending {
		t.Fatalf("status = %q", w.Status)
	}

	ok, err := st.ClaimWorkItem("w1")
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	// Double claim fails.
	ok, _ = st.ClaimWorkItem("w1")
	if ok {
		t.Fatal("double claim should fail")
	}

	ok, err = st.CompleteWorkItem("w1", WorkDone)
	if err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	got, err := st.GetWorkItem("w1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != WorkDone || got.CompletedAt == nil {
		t.Fatalf("item = %+v", got)
	}
}

func TestStaleRecovery(t *testing.T) {
	st := newTestStore(t)
	_, err := st.EnqueueWorkItem(&WorkItem{ID: "w1", AgentID: "a", Source: "trigger"})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := st.ClaimWorkItem("w1"); !ok {
		t.Fatal("claim failed")
	}

	// Not stale yet.
	stale, err := st.StaleRunningItems(time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatalf("stale = %d, want 0", len(stale))
	}

	// Everything running is stale against a future cutoff.
	stale, err = st.StaleRunningItems(time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 {
		t.Fatalf("stale = %d, want 1", len(stale))
	}

	ok, err := st.FailStaleItem("w1", true)
	if err != nil || !ok {
		t.Fatalf("fail stale: ok=%v err=%v", ok, err)
	}
	got, _ := st.GetWorkItem("w1")
	if got.Status != WorkPending {
		t.Fatalf("requeued status = %q", got.Status)
	}
}

func TestDraftUniqueSource(t *testing.T) {
	st := newTestStore(t)
	_, err := st.InsertDraft(&ContentDraft{
		ID: "d1", AuthorID: "essayist", ContentType: "essay",
		Title: "T", Body: "B", SourceSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Second draft for the same session violates the unique index.
	_, err = st.InsertDraft(&ContentDraft{
		ID: "d2", AuthorID: "essayist", ContentType: "essay",
		Title: "T2", Body: "B2", SourceSessionID: "sess-1",
	})
	if err == nil {
		t.Fatal("expected unique violation for duplicate source session")
	}

	d, err := st.GetDraftBySource("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "d1" {
		t.Fatalf("lookup by source = %+v", d)
	}
	d, err = st.GetDraftBySource("sess-nope")
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatal("missing source should return nil, nil")
	}
}

func TestDraftTransitionConditional(t *testing.T) {
	st := newTestStore(t)
	_, err := st.InsertDraft(&ContentDraft{
		ID: "d1", AuthorID: "a", Title: "T", Body: "B", SourceSessionID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := st.TransitionDraft("d1", "draft", "review")
	if err != nil || !ok {
		t.Fatalf("draft->review: ok=%v err=%v", ok, err)
	}
	// Stale precondition loses.
	ok, err = st.TransitionDraft("d1", "draft", "review")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("transition from stale status should not apply")
	}

	ok, err = st.TransitionDraft("d1", "review", "approved")
	if err != nil || !ok {
		t.Fatalf("review->approved: ok=%v err=%v", ok, err)
	}
	ok, err = st.TransitionDraft("d1", "approved", "published")
	if err != nil || !ok {
		t.Fatalf("approved->published: ok=%v err=%v", ok, err)
	}
	d, _ := st.GetDraft("d1")
	if d.PublishedAt == nil {
		t.Fatal("published_at should be set")
	}
}

func TestReviewerNotes(t *testing.T) {
	st := newTestStore(t)
	_, err := st.InsertDraft(&ContentDraft{
		ID: "d1", AuthorID: "a", Title: "T", Body: "B", SourceSessionID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := st.ReplaceReviewerNotes("d1", []string{"first pass"}); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendReviewerNote("d1", "second opinion"); err != nil {
		t.Fatal(err)
	}
	d, _ := st.GetDraft("d1")
	if len(d.ReviewerNotes) != 2 || d.ReviewerNotes[1] != "second opinion" {
		t.Fatalf("notes = %v", d.ReviewerNotes)
	}

	// Replace discards the accumulated list.
	if err := st.ReplaceReviewerNotes("d1", []string{"fresh"}); err != nil {
		t.Fatal(err)
	}
	d, _ = st.GetDraft("d1")
	if len(d.ReviewerNotes) != 1 || d.ReviewerNotes[0] != "fresh" {
		t.Fatalf("notes after replace = %v", d.ReviewerNotes)
	}
}

func TestProposalExpiry(t *testing.T) {
	st := newTestStore(t)
	p, err := st.InsertProposal(&MissionProposal{
		ID: "p1", ProposerID: "moderator", Title: "Archive the debates",
		Steps: []MissionStep{{Kind: "research"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != ProposalProposed {
		t.Fatalf("status = %q", p.Status)
	}

	// Cutoff before creation: nothing expires.
	n, err := st.ExpireProposalsBefore(p.CreatedAt.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expired = %d, want 0", n)
	}

	n, err = st.ExpireProposalsBefore(p.CreatedAt.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	got, _ := st.GetProposal("p1")
	if got.Status != ProposalExpired {
		t.Fatalf("status = %q", got.Status)
	}
	if len(got.Steps) != 1 || got.Steps[0].Kind != "research" {
		t.Fatalf("steps = %v", got.Steps)
	}
}

func TestSettingsAndKillSwitch(t *testing.T) {
	st := newTestStore(t)
	if !st.HeartbeatEnabled() {
		t.Fatal("heartbeat should default to enabled")
	}
	if err := st.SetSetting("heartbeat_enabled", "false"); err != nil {
		t.Fatal(err)
	}
	if st.HeartbeatEnabled() {
		t.Fatal("heartbeat should be disabled")
	}
	if err := st.SetSetting("heartbeat_enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if !st.HeartbeatEnabled() {
		t.Fatal("heartbeat should be re-enabled")
	}
}
