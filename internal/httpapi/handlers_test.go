package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	apimw "github.com/hamed0406/keepalive/internal/httpapi/middleware"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/repo/memory"
	"github.com/hamed0406/keepalive/internal/runlog"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

// ---- test helpers ----

type fakeRuns struct {
	mu      sync.Mutex
	busy    bool
	started int
	last    *scheduler.RunReport
}

func (f *fakeRuns) Start(_ context.Context, _ []domain.Target, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.started++
	return true
}

func (f *fakeRuns) Last() (scheduler.RunReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return scheduler.RunReport{}, false
	}
	return *f.last, true
}

type fixture struct {
	srv   *httptest.Server
	runs  *fakeRuns
	store *memory.Store
	log   *runlog.Log
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runs:  &fakeRuns{},
		store: memory.New(),
		log:   runlog.New(filepath.Join(t.TempDir(), "keep_alive.log"), nil, nil, nil),
	}
	targets := []domain.Target{{ID: "org/app", Token: "hf_secret"}, {ID: "org/public"}}
	s := NewServer(zap.NewNop(), targets, 30*24*time.Hour, f.store, f.log, f.runs)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveProbe(domain.Outcome{TargetID: "org/app", Kind: domain.Success})
	s.Gatherer = reg

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	f.srv = httptest.NewServer(s.Router(keys, nil, 10_000, 10_000, 10_000, 10_000))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, key string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(method, f.srv.URL+path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

// ---- tests ----

func TestHealthzAndMetricsAreOpen(t *testing.T) {
	f := setup(t)

	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `keepalive_probes_total{outcome="success",target="org/app"} 1`) {
		t.Fatalf("probe counter missing from metrics:\n%s", body)
	}
}

func TestTargets_RedactsTokens(t *testing.T) {
	f := setup(t)

	resp, _ := f.do(t, http.MethodGet, "/api/targets", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 without key, got %d", resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodGet, "/api/targets", "pub_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "hf_secret") {
		t.Fatalf("token leaked: %s", body)
	}
	var got []targetView
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || !got[0].Authenticated || got[1].Authenticated {
		t.Fatalf("unexpected targets: %+v", got)
	}
}

func TestStatus_LatestAndLastRun(t *testing.T) {
	f := setup(t)
	now := time.Now()
	_ = f.store.Record(context.Background(), domain.Outcome{TargetID: "org/app", Kind: domain.HTTPFailure, StatusCode: 503, CheckedAt: now})
	f.runs.mu.Lock()
	f.runs.last = &scheduler.RunReport{ID: "run-1", StartedAt: now.Add(-time.Minute), FinishedAt: now}
	f.runs.mu.Unlock()

	resp, body := f.do(t, http.MethodGet, "/api/status", "pub_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var got struct {
		Targets []struct {
			TargetID   string `json:"target_id"`
			Kind       string `json:"kind"`
			StatusCode int    `json:"status_code"`
		} `json:"targets"`
		LastRun    struct{ ID string } `json:"last_run"`
		LastRunAgo string              `json:"last_run_ago"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if len(got.Targets) != 1 || got.Targets[0].Kind != "http_failure" || got.Targets[0].StatusCode != 503 {
		t.Fatalf("unexpected targets: %+v", got.Targets)
	}
	if got.LastRun.ID != "run-1" || got.LastRunAgo == "" {
		t.Fatalf("unexpected last run: %+v", got)
	}
}

func TestLog_Tail(t *testing.T) {
	f := setup(t)
	f.log.Write("[org/app] keep-alive ok, stage: RUNNING")
	f.log.Write("[org/public] keep-alive failed, status code: 503")

	resp, body := f.do(t, http.MethodGet, "/api/log?limit=1", "adm_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var lines []runlog.Line
	if err := json.Unmarshal(body, &lines); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lines) != 1 || !lines[0].OK || !strings.Contains(lines[0].Entry.Message, "503") {
		t.Fatalf("unexpected tail: %+v", lines)
	}
}

func TestRun_AdminOnlyAndConflict(t *testing.T) {
	f := setup(t)

	if resp, _ := f.do(t, http.MethodPost, "/api/run", "pub_test"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key must not trigger runs, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPost, "/api/run", "adm_test"); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
	f.runs.mu.Lock()
	started := f.runs.started
	f.runs.busy = true
	f.runs.mu.Unlock()
	if started != 1 {
		t.Fatalf("want one started run, got %d", started)
	}

	if resp, _ := f.do(t, http.MethodPost, "/api/run", "adm_test"); resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 while busy, got %d", resp.StatusCode)
	}
}
