package candidates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trendwatch/trendwatch/internal/classify"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/models"
)

type fixedClassifier struct {
	scores map[string]float64
	err    error
}

func (f *fixedClassifier) Classify(ctx context.Context, term, newsContext string) (classify.Label, error) {
	if f.err != nil {
		return classify.Label{}, f.err
	}
	return classify.Label{Category: "topic", Score: f.scores[term]}, nil
}

func newTestManager(t *testing.T, classifier classify.Classifier) (*Manager, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	cfg := config.CandidateConfig{TTL: 72 * time.Hour, ApproveThreshold: 0.6}
	m := NewManager(repo, classifier, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return m, repo
}

func TestCaptureSetsTTLAndDedupes(t *testing.T) {
	m, _ := newTestManager(t, &fixedClassifier{})
	ctx := context.Background()

	first, err := m.Capture(ctx, "quantum computing", models.CandidateSourceRising, "news-1")
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}
	if !first.ExpiresAt.Equal(first.CapturedAt.Add(72 * time.Hour)) {
		t.Errorf("expiresAt = %v, want capturedAt+72h", first.ExpiresAt)
	}
	if first.Status != models.CandidateStatusPending {
		t.Errorf("status = %s, want pending", first.Status)
	}

	second, err := m.Capture(ctx, "quantum computing", models.CandidateSourceRising, "news-2")
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}
	if second.ID != first.ID {
		t.Error("duplicate term should return the existing active candidate")
	}
}

func TestScorePendingAppliesThreshold(t *testing.T) {
	classifier := &fixedClassifier{scores: map[string]float64{"good": 0.9, "bad": 0.2}}
	m, repo := newTestManager(t, classifier)
	ctx := context.Background()

	if _, err := m.Capture(ctx, "good", models.CandidateSourceRising, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Capture(ctx, "bad", models.CandidateSourceRising, ""); err != nil {
		t.Fatal(err)
	}

	scored, err := m.ScorePending(ctx, 10)
	if err != nil {
		t.Fatalf("ScorePending error: %v", err)
	}
	if scored != 2 {
		t.Errorf("scored = %d, want 2", scored)
	}

	approved, _ := repo.ListByStatus(ctx, models.CandidateStatusApproved, 0)
	if len(approved) != 1 || approved[0].Term != "good" {
		t.Errorf("approved = %+v", approved)
	}

	rejected, _ := repo.ListByStatus(ctx, models.CandidateStatusRejected, 0)
	if len(rejected) != 1 || rejected[0].Term != "bad" {
		t.Errorf("rejected = %+v", rejected)
	}
	if rejected[0].RejectionReason == "" {
		t.Error("rejected candidate must carry a reason")
	}
}

func TestScorePendingClassifierFailureLeavesPending(t *testing.T) {
	m, repo := newTestManager(t, &fixedClassifier{err: errors.New("rate limited")})
	ctx := context.Background()

	if _, err := m.Capture(ctx, "stuck", models.CandidateSourceRising, ""); err != nil {
		t.Fatal(err)
	}

	scored, err := m.ScorePending(ctx, 10)
	if err != nil {
		t.Fatalf("ScorePending error: %v", err)
	}
	if scored != 0 {
		t.Errorf("scored = %d, want 0", scored)
	}

	pending, _ := repo.ListByStatus(ctx, models.CandidateStatusPending, 0)
	if len(pending) != 1 {
		t.Errorf("candidate should remain pending, got %+v", pending)
	}
}

func TestSelectApprovedOrdering(t *testing.T) {
	m, repo := newTestManager(t, &fixedClassifier{})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	add := func(id, term string, score float64, capturedAt time.Time) {
		s := score
		if err := repo.Create(ctx, models.Candidate{
			ID:         id,
			Term:       term,
			Status:     models.CandidateStatusApproved,
			LLMScore:   &s,
			CapturedAt: capturedAt,
			ExpiresAt:  capturedAt.Add(1000 * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	add("a", "alpha", 0.9, base)
	add("b", "beta", 0.95, base.Add(2*time.Hour))
	add("c", "gamma", 0.95, base.Add(time.Hour))

	m.SetClock(func() time.Time { return base.Add(3 * time.Hour) })

	got, err := m.SelectApproved(ctx, 2)
	if err != nil {
		t.Fatalf("SelectApproved error: %v", err)
	}

	// Two 0.95-score candidates win; the older capture comes first.
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		ids := make([]string, len(got))
		for i, c := range got {
			ids[i] = c.ID
		}
		t.Errorf("selection order = %v, want [c b]", ids)
	}
}

func TestSelectApprovedExcludesQueriedAndExpired(t *testing.T) {
	m, repo := newTestManager(t, &fixedClassifier{})
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	score := 0.9
	queried := now.Add(-time.Hour)
	seed := []models.Candidate{
		{ID: "live", Status: models.CandidateStatusApproved, LLMScore: &score, CapturedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		{ID: "used", Status: models.CandidateStatusApproved, LLMScore: &score, CapturedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour), QueriedAt: &queried},
		{ID: "old", Status: models.CandidateStatusApproved, LLMScore: &score, CapturedAt: now.Add(-100 * time.Hour), ExpiresAt: now.Add(-28 * time.Hour)},
	}
	for _, c := range seed {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.SelectApproved(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "live" {
		t.Errorf("selection = %+v, want only 'live'", got)
	}
}

func TestListHealsExpiredOnRead(t *testing.T) {
	m, repo := newTestManager(t, &fixedClassifier{})
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	// Captured 100h ago with a 72h TTL, never swept.
	if err := repo.Create(ctx, models.Candidate{
		ID:         "stale",
		Term:       "stale term",
		Status:     models.CandidateStatusApproved,
		CapturedAt: now.Add(-100 * time.Hour),
		ExpiresAt:  now.Add(-28 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	listed, err := m.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Status != models.CandidateStatusExpired {
		t.Errorf("listed = %+v, want expired status", listed)
	}

	// The healed status must now be durable.
	stored, err := repo.GetByID(ctx, "stale")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.CandidateStatusExpired {
		t.Errorf("stored status = %s, want expired", stored.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	m, _ := newTestManager(t, &fixedClassifier{})
	ctx := context.Background()

	c, err := m.Capture(ctx, "dubious", models.CandidateSourceRising, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Reject(ctx, c.ID, "  "); err == nil {
		t.Error("Reject without a reason should fail")
	}

	rejected, err := m.Reject(ctx, c.ID, "manually flagged as spam")
	if err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if rejected.Status != models.CandidateStatusRejected || rejected.RejectionReason == "" {
		t.Errorf("rejected = %+v", rejected)
	}

	// Rejecting twice is not allowed by the state machine.
	if _, err := m.Reject(ctx, c.ID, "again"); err == nil {
		t.Error("rejecting a non-pending candidate should fail")
	}
}

func TestMarkQueried(t *testing.T) {
	m, repo := newTestManager(t, &fixedClassifier{scores: map[string]float64{"topic": 0.9}})
	ctx := context.Background()

	c, err := m.Capture(ctx, "topic", models.CandidateSourceRising, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ScorePending(ctx, 10); err != nil {
		t.Fatal(err)
	}

	at := time.Now()
	if err := m.MarkQueried(ctx, c.ID, at); err != nil {
		t.Fatalf("MarkQueried error: %v", err)
	}

	stored, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.QueriedAt == nil {
		t.Fatal("queriedAt not set")
	}
	// Status is unchanged by consumption.
	if stored.Status != models.CandidateStatusApproved {
		t.Errorf("status = %s, want approved", stored.Status)
	}

	got, err := m.SelectApproved(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("queried candidate re-selected: %+v", got)
	}
}

func TestLifecycleRecordsTransitionMetrics(t *testing.T) {
	classifier := &fixedClassifier{scores: map[string]float64{"good": 0.9, "bad": 0.2}}
	m, _ := newTestManager(t, classifier)

	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector error: %v", err)
	}
	m.SetCollector(collector)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return base })

	for _, term := range []string{"good", "bad"} {
		if _, err := m.Capture(ctx, term, models.CandidateSourceRising, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.ScorePending(ctx, 10); err != nil {
		t.Fatal(err)
	}
	noise, err := m.Capture(ctx, "noise", models.CandidateSourceRising, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reject(ctx, noise.ID, "operator call"); err != nil {
		t.Fatal(err)
	}

	// Past the TTL, reading heals the approved survivor to expired.
	m.SetClock(func() time.Time { return base.Add(73 * time.Hour) })
	if _, err := m.List(ctx, "", 0); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	checks := []string{
		`trendwatch_candidates_transitions_total{status="pending"} 3`,
		`trendwatch_candidates_transitions_total{status="approved"} 1`,
		`trendwatch_candidates_transitions_total{status="rejected"} 2`,
		`trendwatch_candidates_transitions_total{status="expired"} 1`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("metric missing: %s\nbody: %s", want, body)
		}
	}
}
