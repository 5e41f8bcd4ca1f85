package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	r := NewRecorder()
	at := time.Unix(1_760_000_000, 0)

	r.RecordRun(OutcomeSuccess, 3, at)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.eventsWritten))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.fallbackActive))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(r.lastRunTS.WithLabelValues(OutcomeSuccess)))

	r.RecordRun(OutcomeFallback, 0, at.Add(time.Minute))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.eventsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbackActive))

	r.RecordRun(OutcomeFailed, 0, at.Add(2*time.Minute))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbackActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues(OutcomeFailed)))
}

func TestObserveStage(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage("fetching", 200*time.Millisecond)
	r.ObserveStage("writing", time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.stageDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStage("fetching", time.Second)
		r.RecordRun(OutcomeSuccess, 1, time.Now())
	})
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordRun(OutcomeSuccess, 2, time.Unix(1_760_000_000, 0))

	path := filepath.Join(t.TempDir(), "kcevents.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `kcevents_runs_total{outcome="success"} 1`)
	assert.Contains(t, text, "kcevents_events_written 2")
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.RecordRun(OutcomeFallback, 0, time.Unix(1_760_000_000, 0))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "kcevents_fallback_active 1"))
}
