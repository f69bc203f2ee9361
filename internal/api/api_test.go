package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"github.com/trendwatch/trendwatch/internal/aggregate"
	"github.com/trendwatch/trendwatch/internal/candidates"
	"github.com/trendwatch/trendwatch/internal/classify"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/harvest"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/models"
	"github.com/trendwatch/trendwatch/internal/orchestrator"
	"github.com/trendwatch/trendwatch/internal/trends"
)

type staticConnector struct {
	entries []harvest.FeedEntry
}

func (c *staticConnector) Name() string { return "static" }

func (c *staticConnector) Fetch(ctx context.Context, limit int) ([]harvest.FeedEntry, error) {
	if limit > 0 && len(c.entries) > limit {
		return c.entries[:limit], nil
	}
	return c.entries, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			IngestToken:      "ingest-secret",
			JWTSecret:        "test-secret",
			OperatorPassword: "operator",
			TokenDuration:    time.Hour,
		},
		Harvest: config.HarvestConfig{
			BatchSize:   50,
			MaxKeywords: 5,
			MinTermLen:  4,
		},
		Candidates: config.CandidateConfig{
			TTL:              72 * time.Hour,
			ApproveThreshold: 0.6,
		},
		Runs: config.RunConfig{
			RootKeywords:      []string{"solar"},
			MaxCandidates:     10,
			Concurrency:       2,
			CostPerTask:       1.0,
			MaxDiscoveryDepth: 2,
			Locale:            "US",
			Timeframe:         "now 7-d",
			TaskTimeout:       time.Second,
		},
		Aggregate: config.AggregateConfig{
			SpikeWindow:     5,
			SpikeThreshold:  2.0,
			SpikeEpsilon:    0.0001,
			MediumThreshold: 3.0,
			HighThreshold:   4.0,
			DedupWindow:     time.Hour,
			HotlistSize:     20,
		},
	}
}

func newTestServer(t *testing.T, entries []harvest.FeedEntry) (*httptest.Server, *candidates.Manager) {
	t.Helper()

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	candRepo := candidates.NewMemoryRepository()
	manager := candidates.NewManager(candRepo, classify.NewMockClassifier(), cfg.Candidates, logger)

	newsRepo := harvest.NewMemoryNewsRepository()
	harvester := harvest.NewHarvester(&staticConnector{entries: entries}, newsRepo, manager, cfg.Harvest, logger)

	aggregator := aggregate.New(aggregate.NewMemorySnapshotRepository(), aggregate.NewMemoryAlertRepository(), cfg.Aggregate, logger)

	orch := orchestrator.New(orchestrator.NewMemoryRunRepository(), trends.NewMockProbe(), manager, aggregator, cfg.Runs, logger)

	handler := NewHandler(harvester, manager, orch, aggregator, cfg, logger)

	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, handler, cfg, collector, logger)

	srv := httptest.NewServer(collector.InstrumentHandler(mux))
	t.Cleanup(srv.Close)
	return srv, manager
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body := bytes.NewBufferString(`{"password":"operator"}`)
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", body)
	if err != nil {
		t.Fatalf("login request error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var lr LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return lr.Token
}

func doRequest(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	return resp
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
		bytes.NewBufferString(`{"password":"wrong"}`))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestIngestRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/ingest", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without ingest token", resp.StatusCode)
	}
}

func TestIngestHarvestsAndScores(t *testing.T) {
	srv, _ := newTestServer(t, []harvest.FeedEntry{
		{Title: "Graphene Battery Breakthrough", Link: "https://example.com/graphene", Summary: "Researchers unveil graphene battery"},
	})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/ingest", "ingest-secret", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result struct {
		Inserted int `json:"inserted"`
		Scored   int `json:"scored"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", result.Inserted)
	}
	if result.Scored == 0 {
		t.Error("expected candidates scored in the same pass")
	}
}

func TestRunLifecycleOverAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := login(t, srv)

	// Creation requires the operator token.
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/runs", "", []byte(`{}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d, want 401", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/runs", token,
		[]byte(`{"root_keywords":["fusion","quantum"]}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create status = %d, want 202", resp.StatusCode)
	}
	var created models.Run
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	resp.Body.Close()

	// Execution is asynchronous; poll until terminal.
	deadline := time.Now().Add(5 * time.Second)
	var final models.Run
	for {
		if time.Now().After(deadline) {
			t.Fatalf("run %s never reached a terminal state (last: %s)", created.ID, final.Status)
		}

		getResp := doRequest(t, http.MethodGet, srv.URL+"/api/runs/"+created.ID, "", nil)
		if getResp.StatusCode != http.StatusOK {
			t.Fatalf("get run status = %d", getResp.StatusCode)
		}
		var detail struct {
			Run   models.Run    `json:"run"`
			Tasks []models.Task `json:"tasks"`
		}
		if err := json.NewDecoder(getResp.Body).Decode(&detail); err != nil {
			t.Fatalf("decode run detail: %v", err)
		}
		getResp.Body.Close()

		final = detail.Run
		if final.Status.Terminal() {
			if final.Status != models.RunStatusCompleted {
				t.Errorf("final status = %s, want completed", final.Status)
			}
			if final.TaskCounts.Total != 2 || final.TaskCounts.Completed != 2 {
				t.Errorf("counts = %+v", final.TaskCounts)
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	// The completed run shows up in the listing without auth.
	listResp := doRequest(t, http.MethodGet, srv.URL+"/api/runs", "", nil)
	defer listResp.Body.Close()
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", listResp.StatusCode)
	}
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Count != 1 {
		t.Errorf("run count = %d, want 1", listing.Count)
	}
}

func TestRunValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := login(t, srv)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/runs", token,
		[]byte(`{"cost_budget":-1}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for negative budget", resp.StatusCode)
	}
}

func TestCancelUnknownRunConflicts(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := login(t, srv)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/runs/nope/cancel", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCandidateModeration(t *testing.T) {
	srv, manager := newTestServer(t, nil)
	token := login(t, srv)

	captured, err := manager.Capture(context.Background(), "graphene", models.CandidateSourceRising, "")
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	// Listing requires the operator token.
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/candidates", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status = %d, want 401", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/candidates?status=pending", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	resp.Body.Close()
	if listing.Count != 1 {
		t.Errorf("pending count = %d, want 1", listing.Count)
	}

	// Rejection without a reason is refused.
	url := fmt.Sprintf("%s/api/candidates/%s/reject", srv.URL, captured.ID)
	resp = doRequest(t, http.MethodPost, url, token, []byte(`{}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("reject without reason status = %d, want 400", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, url, token, []byte(`{"reason":"brand term"}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject status = %d", resp.StatusCode)
	}
	var rejected models.Candidate
	if err := json.NewDecoder(resp.Body).Decode(&rejected); err != nil {
		t.Fatalf("decode candidate: %v", err)
	}
	if rejected.Status != models.CandidateStatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if rejected.RejectionReason != "brand term" {
		t.Errorf("reason = %q", rejected.RejectionReason)
	}
}

func TestRejectUnknownCandidate(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := login(t, srv)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/candidates/nope/reject", token,
		[]byte(`{"reason":"noise"}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestOverviewIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/overview", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var overview struct {
		GeneratedAt time.Time                  `json:"generated_at"`
		Metrics     []aggregate.OverviewMetric `json:"metrics"`
		Hotlists    []*models.Hotlist          `json:"hotlists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.GeneratedAt.IsZero() {
		t.Error("overview missing generation time")
	}
	if len(overview.Metrics) == 0 {
		t.Error("overview missing metrics")
	}
	if len(overview.Hotlists) != 1 {
		t.Fatalf("overview hotlists = %d, want 1", len(overview.Hotlists))
	}
	if overview.Hotlists[0].Timeframe != "now 7-d" {
		t.Errorf("timeframe = %q, want configured default", overview.Hotlists[0].Timeframe)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
