package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wikiquiz/server/internal/config"
)

func newTestApp(t *testing.T, retentionDays int) *App {
	t.Helper()
	cfg := &config.AppConfig{
		Port:          8000,
		Env:           "production",
		Database:      config.DatabaseRuntimeConfig{Driver: config.DriverSQLite},
		DSN:           filepath.Join(t.TempDir(), "app.db"),
		AI:            config.AIConfig{Type: "gemini"},
		Fetch:         config.FetchConfig{TimeoutSec: 1, MaxBodyMB: 1},
		RetentionDays: retentionDays,
	}
	a, err := New(nil, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a
}

func request(a *App, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestRootAndHealth(t *testing.T) {
	a := newTestApp(t, 0)

	w := request(a, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), Version) {
		t.Fatalf("root -> %d %s", w.Code, w.Body.String())
	}

	w = request(a, http.MethodGet, "/health", "")
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || body["database"] != true {
		t.Fatalf("health -> %d %v", w.Code, body)
	}
	if _, ok := body["redis"]; ok {
		t.Fatal("redis reported while disabled")
	}
}

func TestRoutesWired(t *testing.T) {
	a := newTestApp(t, 0)

	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/api/quiz/generate", `{"url":"https://example.com"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/quiz/validate-url", `{"url":"https://en.wikipedia.org/wiki/Go"}`, http.StatusOK},
		{http.MethodGet, "/api/quiz/missing", "", http.StatusNotFound},
		{http.MethodGet, "/api/history", "", http.StatusOK},
		{http.MethodGet, "/api/history/missing", "", http.StatusNotFound},
		{http.MethodDelete, "/api/history/missing", "", http.StatusNotFound},
		{http.MethodGet, "/api/history/stats/summary", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := request(a, tc.method, tc.path, tc.body)
		if w.Code != tc.status {
			t.Errorf("%s %s -> %d, want %d (%s)", tc.method, tc.path, w.Code, tc.status, w.Body.String())
		}
	}
}

func TestRetentionJobRegistration(t *testing.T) {
	if jobs := newTestApp(t, 0).sched.List(); len(jobs) != 0 {
		t.Fatalf("jobs without retention = %v", jobs)
	}
	a := newTestApp(t, 30)
	jobs := a.sched.List()
	if len(jobs) != 1 || jobs[0].Name != purgeJobName {
		t.Fatalf("jobs = %v", jobs)
	}

	w := request(a, http.MethodPost, "/health/cron/run/"+purgeJobName, "")
	if w.Code != http.StatusOK {
		t.Fatalf("manual purge -> %d (%s)", w.Code, w.Body.String())
	}
}

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"https://quiz.example.com", "*.example.org", "localhost:*"}
	cases := map[string]bool{
		"https://quiz.example.com": true,
		"https://app.example.org":  true,
		"http://localhost:5173":    true,
		"https://evil.com":         false,
		"https://example.com":      false,
	}
	for origin, want := range cases {
		if got := originAllowed(patterns, origin); got != want {
			t.Errorf("originAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestParseTimezoneLocation(t *testing.T) {
	if _, err := parseTimezoneLocation("+05:30"); err != nil {
		t.Fatalf("offset: %v", err)
	}
	if _, err := parseTimezoneLocation("Mars/Olympus"); err == nil {
		t.Fatal("expected error")
	}
}
