package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs and catalog syncs.
type Metrics struct {
	runs               *prometheus.CounterVec
	failures           *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	productsSynced     prometheus.Gauge
	imagesPreserved    prometheus.Gauge
	lastSuccess        prometheus.Gauge
	collectionFailures *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// RecordSync publishes the outcome of a completed catalog sync.
func (m *Metrics) RecordSync(products, preserved int, at time.Time) {
	if m == nil {
		return
	}
	m.productsSynced.Set(float64(products))
	m.imagesPreserved.Set(float64(preserved))
	m.lastSuccess.Set(float64(at.Unix()))
}

// CollectionFailed counts a vendor collection that could not be fetched.
func (m *Metrics) CollectionFailed(collection string) {
	if m == nil || collection == "" {
		return
	}
	m.collectionFailures.WithLabelValues(collection).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"job"})
	productsSynced := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_sync_products",
		Help: "Products written by the last successful catalog sync.",
	})
	imagesPreserved := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_sync_images_preserved",
		Help: "Admin images carried forward by the last successful catalog sync.",
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful catalog sync.",
	})
	collectionFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_collection_failures_total",
		Help: "Vendor collections that failed during a sync, by collection.",
	}, []string{"collection"})
	registerer.MustRegister(runs, failures, duration, productsSynced, imagesPreserved, lastSuccess, collectionFailures)
	return &Metrics{
		runs:               runs,
		failures:           failures,
		duration:           duration,
		productsSynced:     productsSynced,
		imagesPreserved:    imagesPreserved,
		lastSuccess:        lastSuccess,
		collectionFailures: collectionFailures,
	}
}
