package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hindsight/internal/db"
	"hindsight/internal/domain"
	"hindsight/internal/guard"
	"hindsight/internal/journal"
	"hindsight/internal/migrate"
	"hindsight/internal/repo"
	"hindsight/internal/validate"
)

type testEnv struct {
	Journal journal.Journal
	Ctx     context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	j := journal.New(conn)
	// deterministic, strictly increasing clock
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return testEnv{Journal: j, Ctx: context.Background()}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func decisionInput(title string) validate.DecisionInput {
	return validate.DecisionInput{
		Title:     title,
		Context:   "context for " + title,
		Reasoning: "reasoning for " + title,
		Options: []domain.Option{
			{ID: "a", Text: "option a"},
			{ID: "b", Text: "option b"},
		},
		ChosenOptionID: "a",
		Prediction:     "it works out",
		Confidence:     intPtr(3),
		ReviewDate:     "2025-01-01T00:00:00Z",
	}
}

func outcomeInput(decisionID string) validate.OutcomeInput {
	return validate.OutcomeInput{
		DecisionID:       decisionID,
		Result:           domain.ResultGood,
		ImpactScore:      intPtr(4),
		WasCorrectChoice: boolPtr(true),
		LessonsLearned:   "option a was the right call",
	}
}

func TestCreateAndGetDecision(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Pick a database"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID == "" || d.Status != domain.StatusPending {
		t.Fatalf("unexpected decision: %+v", d)
	}
	got, err := env.Journal.GetDecision(env.Ctx, "alice", d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Pick a database" || got.Outcome != nil {
		t.Fatalf("unexpected fetch: %+v", got)
	}
}

func TestCreateDecisionCollectsAllErrors(t *testing.T) {
	env := newTestEnv(t)
	in := decisionInput("ab") // too short
	in.Confidence = intPtr(6)
	_, err := env.Journal.CreateDecision(env.Ctx, "alice", in)
	var verrs validate.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if _, ok := verrs["title"]; !ok {
		t.Fatalf("missing title violation: %v", verrs)
	}
	if _, ok := verrs["confidence"]; !ok {
		t.Fatalf("missing confidence violation: %v", verrs)
	}
}

func TestLogOutcomeCompletesDecision(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Ship the rewrite"))
	if err != nil {
		t.Fatal(err)
	}
	o, err := env.Journal.LogOutcome(env.Ctx, "alice", outcomeInput(d.ID))
	if err != nil {
		t.Fatalf("log outcome: %v", err)
	}
	if o.OwnerID != "alice" {
		t.Fatalf("outcome owner should be copied from decision, got %q", o.OwnerID)
	}
	got, err := env.Journal.GetDecision(env.Ctx, "alice", d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Outcome == nil || got.Outcome.ID != o.ID {
		t.Fatalf("expected embedded outcome: %+v", got.Outcome)
	}
}

func TestLogOutcomeSecondAttemptConflicts(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Hire the contractor"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Journal.LogOutcome(env.Ctx, "alice", outcomeInput(d.ID)); err != nil {
		t.Fatal(err)
	}
	_, err = env.Journal.LogOutcome(env.Ctx, "alice", outcomeInput(d.ID))
	var ce guard.ConflictError
	if !errors.As(err, &ce) || ce.Reason != guard.ReasonAlreadyLogged {
		t.Fatalf("expected already-logged conflict, got %v", err)
	}
}

func TestLogOutcomeGuards(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Move offices"))
	if err != nil {
		t.Fatal(err)
	}
	// unknown id resolves before ownership
	_, err = env.Journal.LogOutcome(env.Ctx, "mallory", outcomeInput("no-such-id"))
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = env.Journal.LogOutcome(env.Ctx, "mallory", outcomeInput(d.ID))
	var fe guard.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteDecision(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Cancel the vendor"))
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Journal.DeleteDecision(env.Ctx, "alice", d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = env.Journal.GetDecision(env.Ctx, "alice", d.ID)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDeleteLockedDecisionConflicts(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Acquire the startup"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Journal.LogOutcome(env.Ctx, "alice", outcomeInput(d.ID)); err != nil {
		t.Fatal(err)
	}
	err = env.Journal.DeleteDecision(env.Ctx, "alice", d.ID)
	var ce guard.ConflictError
	if !errors.As(err, &ce) || ce.Reason != guard.ReasonLocked {
		t.Fatalf("expected locked conflict, got %v", err)
	}
	// still there
	if _, err := env.Journal.GetDecision(env.Ctx, "alice", d.ID); err != nil {
		t.Fatalf("locked decision must survive delete attempts: %v", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Sunset the API"))
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Journal.DeleteDecision(env.Ctx, "alice", "no-such-id"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	err = env.Journal.DeleteDecision(env.Ctx, "mallory", d.ID)
	var fe guard.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestGetDecisionOwnership(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("Open the EU region"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Journal.GetDecision(env.Ctx, "mallory", d.ID)
	var fe guard.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = env.Journal.GetDecision(env.Ctx, "mallory", "no-such-id")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListOrderingPendingFirstThenNewest(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("oldest pending"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("will be completed"))
	if err != nil {
		t.Fatal(err)
	}
	third, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("newest pending"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Journal.LogOutcome(env.Ctx, "alice", outcomeInput(second.ID)); err != nil {
		t.Fatal(err)
	}

	items, err := env.Journal.ListDecisions(env.Ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(items))
	}
	want := []string{third.ID, first.ID, second.ID}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (%s)", i, id, items[i].ID, items[i].Title)
		}
	}
	if items[2].Outcome == nil {
		t.Fatalf("completed decision should embed its outcome")
	}
	if items[0].Outcome != nil {
		t.Fatalf("pending decision should not embed an outcome")
	}
}

func TestListScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("alice decides")); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Journal.CreateDecision(env.Ctx, "bob", decisionInput("bob decides")); err != nil {
		t.Fatal(err)
	}
	items, err := env.Journal.ListDecisions(env.Ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].OwnerID != "alice" {
		t.Fatalf("list must be scoped to owner: %+v", items)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	var completed domain.Decision
	for i, title := range []string{"one", "two keep", "three"} {
		d, err := env.Journal.CreateDecision(env.Ctx, "alice", decisionInput("decision "+title))
		if err != nil {
			t.Fatal(err)
		}
		if i == 1 {
			completed = d
		}
	}
	if _, err := env.Journal.LogOutcome(env.Ctx, "alice", outcomeInput(completed.ID)); err != nil {
		t.Fatal(err)
	}
	stats, err := env.Journal.Stats(env.Ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 2 || stats.Completed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ByResult[domain.ResultGood] != 1 {
		t.Fatalf("expected one good result: %+v", stats.ByResult)
	}
}
