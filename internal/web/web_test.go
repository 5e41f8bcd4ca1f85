package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcevents/internal/archive"
	"kcevents/internal/config"
	"kcevents/internal/metrics"
	"kcevents/internal/model"
	"kcevents/internal/output"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.Events = filepath.Join(dir, "public", "data", "events.json")
	cfg.Output.Calendar = filepath.Join(dir, "public", "data", "events.ics")
	return cfg
}

func writeDoc(t *testing.T, cfg *config.Config, ids ...string) {
	t.Helper()
	doc := model.EventsDocument{Events: []model.Event{}, LastUpdated: now}
	for _, id := range ids {
		doc.Events = append(doc.Events, model.Event{ID: id, Title: "Coffee " + id, DateTime: now.Add(time.Hour), Duration: 120})
	}
	w := &output.Writer{EventsPath: cfg.Output.Events, CalendarPath: cfg.Output.Calendar}
	require.NoError(t, w.Write(doc))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, NewServer(testConfig(t), Options{}).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestEventsNotGeneratedYet(t *testing.T) {
	rec := get(t, NewServer(testConfig(t), Options{}).Handler(), "/api/events")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventsServesValidatedDocument(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a", "b", "c")
	h := NewServer(cfg, Options{}).Handler()

	rec := get(t, h, "/api/events?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events   []model.Event `json:"events"`
		Fallback bool          `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Events, 2)
	assert.False(t, body.Fallback)

	// The cache must not leak the truncation into later requests.
	rec = get(t, h, "/api/events")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Events, 3)
}

func TestEventsRejectsInvalidDocument(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Output.Events), 0o755))
	require.NoError(t, os.WriteFile(cfg.Output.Events, []byte(`{"events":null}`), 0o644))

	rec := get(t, NewServer(cfg, Options{}).Handler(), "/api/events")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventsReportsFallback(t *testing.T) {
	cfg := testConfig(t)
	w := &output.Writer{EventsPath: cfg.Output.Events, Now: func() time.Time { return now }}
	_, err := w.WriteFallback("No events available - event fetch failed")
	require.NoError(t, err)

	rec := get(t, NewServer(cfg, Options{}).Handler(), "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fallback":true`)
	assert.Contains(t, rec.Body.String(), `"note":"No events available - event fetch failed"`)
}

func TestCalendar(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a")

	rec := get(t, NewServer(cfg, Options{}).Handler(), "/events.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")

	cfg.Output.Calendar = ""
	rec = get(t, NewServer(cfg, Options{}).Handler(), "/events.ics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	cfg := testConfig(t)
	rec := get(t, NewServer(cfg, Options{}).Handler(), "/api/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	db, err := archive.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := archive.NewSQLiteStore(db)
	doc := model.EventsDocument{Events: []model.Event{}, LastUpdated: now, Note: "No events available - authentication failed"}
	require.NoError(t, store.Record(context.Background(), archive.NewSnapshot("r1", doc)))

	rec = get(t, NewServer(cfg, Options{Archive: store}).Handler(), "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []historyEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].RunID)
	assert.True(t, entries[0].Fallback)
}

func TestStaticAndAPIFallthrough(t *testing.T) {
	cfg := testConfig(t)
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>events</h1>"), 0o644))
	h := NewServer(cfg, Options{StaticDir: static}).Handler()

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>events</h1>")

	rec = get(t, h, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.RecordRun(metrics.OutcomeSuccess, 4, now)

	resp := get(t, NewServer(testConfig(t), Options{Metrics: rec}).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "kcevents_events_written 4")
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	h := NewServer(cfg, Options{}).Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)

	rec := get(t, h, "/api/events")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "s3cret")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusServiceUnavailable, ok.Code)
}
