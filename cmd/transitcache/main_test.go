package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/transitcache/config"
)

// gateway serves the hot datasets and counts requests.
func gateway(t *testing.T, down bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer up-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/buses/live":
			_, _ = io.WriteString(w, `{"msg":"ok","res":[{"id":"b1","lineNumber":"2"}]}`)
		case "/lines":
			_, _ = io.WriteString(w, `{"msg":"ok","res":[{"id":1,"lineNumber":"2"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// setEnv points the CLI at url with a file store in a temp dir.
func setEnv(t *testing.T, url string) {
	t.Helper()
	t.Setenv("TRANSITCACHE_UPSTREAM_BASE_URL", url)
	t.Setenv("TC_TEST_UPSTREAM_TOKEN", "up-token")
	t.Setenv("TRANSITCACHE_UPSTREAM_TOKEN", "secretref:env:TC_TEST_UPSTREAM_TOKEN")
	t.Setenv("TRANSITCACHE_STORE_KIND", "file")
	t.Setenv("TRANSITCACHE_STORE_DIR", t.TempDir())
	t.Setenv("TRANSITCACHE_STORE_COMPRESS", "true")
	t.Setenv("TRANSITCACHE_STORE_NAMESPACE", "test_")
	t.Setenv("TRANSITCACHE_OBSERVE_LOGGING_ENABLED", "false")
	t.Setenv("TRANSITCACHE_RESILIENCE_RETRY_MAX_ATTEMPTS", "1")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWarmupThenStats(t *testing.T) {
	srv, hits := gateway(t, false)
	setEnv(t, srv.URL)

	out, err := run(t, "warmup")
	if err != nil {
		t.Fatalf("warmup: %v\n%s", err, out)
	}
	if !strings.Contains(out, "liveBuses  ok") || !strings.Contains(out, "allLines   ok") {
		t.Errorf("warmup output:\n%s", out)
	}
	if hits.Load() != 2 {
		t.Errorf("gateway hits = %d, want 2", hits.Load())
	}

	// A fresh process sees the persisted timestamps without fetching.
	out, err = run(t, "stats", "--key", "live_buses")
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	var got struct {
		Cache struct {
			LiveBuses struct {
				Exists   bool `json:"exists"`
				InMemory bool `json:"inMemory"`
			} `json:"liveBuses"`
			AllLines struct {
				Exists bool `json:"exists"`
			} `json:"allLines"`
		} `json:"cache"`
		Keys map[string]json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out)
	}
	if !got.Cache.LiveBuses.Exists || got.Cache.LiveBuses.InMemory || !got.Cache.AllLines.Exists {
		t.Errorf("stats = %+v", got.Cache)
	}
	if _, ok := got.Keys["live_buses"]; !ok {
		t.Errorf("keys = %v", got.Keys)
	}
	if hits.Load() != 2 {
		t.Errorf("stats fetched upstream: hits = %d", hits.Load())
	}
}

func TestWarmup_AllFail(t *testing.T) {
	srv, _ := gateway(t, true)
	setEnv(t, srv.URL)

	out, err := run(t, "warmup")
	if !errors.Is(err, errWarmupFailed) {
		t.Fatalf("warmup error = %v, want errWarmupFailed\n%s", err, out)
	}
	if !strings.Contains(out, "liveBuses  error:") {
		t.Errorf("warmup output:\n%s", out)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TRANSITCACHE_UPSTREAM_BASE_URL", "")
	t.Setenv("TRANSITCACHE_OBSERVE_LOGGING_ENABLED", "false")
	if _, err := run(t, "stats"); err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Errorf("stats without base_url = %v", err)
	}
}

func TestApp_Router(t *testing.T) {
	srv, _ := gateway(t, false)
	cfg := config.Default()
	cfg.Upstream.BaseURL = srv.URL
	cfg.Upstream.Token = "up-token"
	cfg.Observe.Logging.Enabled = false
	cfg.Debug.APIKey = "op"
	cfg.Debug.JWTSecret = "jwt-secret"

	a, err := newApp(context.Background(), cfg, appOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())

	h, err := a.router()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		method string
		target string
		key    string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/stats", "", http.StatusUnauthorized},
		{http.MethodPost, "/refresh/liveBuses", "op", http.StatusOK},
		{http.MethodGet, "/metrics", "op", http.StatusOK},
		{http.MethodGet, "/health/buscache", "op", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.target, rec.Code, tt.want, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "op")
	h.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "transitcache_cache_fetches_total") {
		t.Error("metrics should include the cache collectors")
	}
}

func TestNewZap(t *testing.T) {
	if _, err := newZap("debug"); err != nil {
		t.Errorf("newZap(debug) = %v", err)
	}
	if _, err := newZap("loud"); err == nil {
		t.Error("newZap(loud) should fail")
	}
}
