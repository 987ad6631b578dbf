package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpH "github.com/yungbote/categorylink/internal/http/handlers"
	"github.com/yungbote/categorylink/internal/observability"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
	"github.com/yungbote/categorylink/internal/services"
)

type fakeHistory struct {
	limit int
	err   error
}

func (f *fakeHistory) History(_ context.Context, limit int) ([]services.RunHistoryEntry, error) {
	f.limit = limit
	return nil, f.err
}

func newTestRouter(tracker *refactor.Tracker, metrics *observability.Metrics, history httpH.RunHistory) http.Handler {
	return NewRouter(RouterConfig{
		Log:             logger.NewNop(),
		HealthHandler:   httpH.NewHealthHandler(),
		ProgressHandler: httpH.NewProgressHandler(tracker),
		RunHandler:      httpH.NewRunHandler(history),
		Metrics:         metrics,
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestRouter(refactor.NewTracker(), nil, &fakeHistory{}), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: code=%d body=%q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestReadyzReportsFailingCheck(t *testing.T) {
	health := httpH.NewHealthHandler().
		WithCheck("ledger", func(context.Context) error { return nil }).
		WithCheck("neo4j", func(context.Context) error { return errors.New("connection refused") })
	h := NewRouter(RouterConfig{Log: logger.NewNop(), HealthHandler: health})

	rec := get(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: want=503 got=%d", rec.Code)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["ledger"] != "ok" || body.Checks["neo4j"] != "connection refused" {
		t.Fatalf("checks: %v", body.Checks)
	}
}

func TestProgressServesTrackerSnapshot(t *testing.T) {
	tracker := refactor.NewTracker()
	ctx := context.Background()
	now := time.Now()
	tracker.Publish(ctx, refactor.Event{Type: refactor.EventJobStarted, RunID: "run-7", At: now, Categories: 1})
	tracker.Publish(ctx, refactor.Event{Type: refactor.EventCategoryStarted, RunID: "run-7", At: now, Category: "France", Target: 4500})
	tracker.Publish(ctx, refactor.Event{Type: refactor.EventBatchCompleted, RunID: "run-7", At: now, Category: "France", Target: 4500, Batch: 1, Cumulative: 2000, Result: &refactor.MutationResult{EdgesCreated: 2000}})

	rec := get(t, newTestRouter(tracker, nil, &fakeHistory{}), "/progress")
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: code=%d", rec.Code)
	}
	var body struct {
		Progress refactor.Snapshot `json:"progress"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Progress.RunID != "run-7" || body.Progress.Migrated != 2000 || body.Progress.Current != "France" {
		t.Fatalf("snapshot: %+v", body.Progress)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := observability.NewMetrics(logger.NewNop())
	m.Publish(context.Background(), refactor.Event{Type: refactor.EventBatchCompleted, Category: "Peru", Result: &refactor.MutationResult{EdgesCreated: 12}})

	rec := get(t, newTestRouter(refactor.NewTracker(), m, &fakeHistory{}), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: code=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `categorylink_edges_created_total{category="Peru"} 12`) {
		t.Fatalf("metrics body:\n%s", rec.Body.String())
	}
}

func TestRunsValidatesLimit(t *testing.T) {
	history := &fakeHistory{}
	h := newTestRouter(refactor.NewTracker(), nil, history)

	if rec := get(t, h, "/runs?limit=0"); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: want=400 got=%d", rec.Code)
	}
	if rec := get(t, h, "/runs?limit=3"); rec.Code != http.StatusOK || history.limit != 3 {
		t.Fatalf("limit=3: code=%d limit=%d", rec.Code, history.limit)
	}
	history.err = errors.New("database is locked")
	if rec := get(t, h, "/runs"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ledger failure: want=503 got=%d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(refactor.NewTracker(), nil, &fakeHistory{})
	req := httptest.NewRequest(http.MethodOptions, "/progress", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin: got=%q (code=%d)", got, rec.Code)
	}
}
