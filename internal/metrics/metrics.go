package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kcevents"

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// Recorder collects per-run pipeline metrics on its own registry. A build job
// exits right after a run, so the usual consumer is WriteTextfile feeding a
// node_exporter textfile collector.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	eventsWritten  prometheus.Gauge
	fallbackActive prometheus.Gauge
	lastRunTS      *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})
	r.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"stage"})
	r.eventsWritten = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_written",
		Help:      "Number of events in the last written document",
	})
	r.fallbackActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fallback_active",
		Help:      "1 if the last written document is a fallback document",
	})
	r.lastRunTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last run by outcome",
	}, []string{"outcome"})

	r.registry.MustRegister(
		r.runsTotal, r.stageDuration, r.eventsWritten,
		r.fallbackActive, r.lastRunTS,
	)
	return r
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun records the terminal outcome of a run.
func (r *Recorder) RecordRun(outcome string, events int, at time.Time) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.lastRunTS.WithLabelValues(outcome).Set(float64(at.Unix()))
	if outcome == OutcomeFailed {
		// Nothing new was written; leave the document gauges alone.
		return
	}
	r.eventsWritten.Set(float64(events))
	if outcome == OutcomeFallback {
		r.fallbackActive.Set(1)
	} else {
		r.fallbackActive.Set(0)
	}
}

// WriteTextfile writes the registry in text exposition format. The write is
// atomic, so a collector never reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
