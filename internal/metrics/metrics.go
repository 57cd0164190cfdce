// Package metrics exposes Prometheus counters and histograms for the API,
// the remote model calls, and workout logging.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the server and services.
type Recorder interface {
	RecordHTTPStatus(route string, statusCode int)
	RecordRequestLatency(route string, d time.Duration)
	RecordRemoteCall(service, outcome string, d time.Duration)
	RecordWorkoutLogged(sets int)
	RecordImport(source, status string, sessions int)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	remoteCalls    *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	workoutsLogged prometheus.Counter
	setsLogged     prometheus.Counter
	imports        *prometheus.CounterVec
	importSessions prometheus.Counter
}

// Compile-time check: *Collector satisfies Recorder.
var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymlog_http_responses_total",
			Help: "HTTP responses by route pattern and status code.",
		}, []string{"route", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gymlog_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymlog_remote_calls_total",
			Help: "Calls to remote model services by service and outcome.",
		}, []string{"service", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gymlog_remote_call_duration_seconds",
			Help:    "Remote model call latency by service.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"service"}),
		workoutsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gymlog_workouts_logged_total",
			Help: "Exercises persisted through the logging workflow.",
		}),
		setsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gymlog_sets_logged_total",
			Help: "Sets persisted through the logging workflow.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymlog_imports_total",
			Help: "Import runs by source and status.",
		}, []string{"source", "status"}),
		importSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gymlog_imported_sessions_total",
			Help: "Sessions written by importers.",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.remoteCalls,
		c.remoteLatency,
		c.workoutsLogged,
		c.setsLogged,
		c.imports,
		c.importSessions,
	)
	return c
}

func (c *Collector) RecordHTTPStatus(route string, statusCode int) {
	c.httpStatus.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordRequestLatency(route string, d time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRemoteCall counts one call to a remote model and observes its latency.
// outcome is "ok" or an error kind.
func (c *Collector) RecordRemoteCall(service, outcome string, d time.Duration) {
	c.remoteCalls.WithLabelValues(service, outcome).Inc()
	c.remoteLatency.WithLabelValues(service).Observe(d.Seconds())
}

func (c *Collector) RecordWorkoutLogged(sets int) {
	c.workoutsLogged.Inc()
	c.setsLogged.Add(float64(sets))
}

func (c *Collector) RecordImport(source, status string, sessions int) {
	c.imports.WithLabelValues(source, status).Inc()
	c.importSessions.Add(float64(sessions))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything. Used when metrics are not wired, mostly in tests.
type Noop struct{}

func (Noop) RecordHTTPStatus(string, int) {}
func (Noop) RecordRequestLatency(string, time.Duration) {}
func (Noop) RecordRemoteCall(string, string, time.Duration) {}
func (Noop) RecordWorkoutLogged(int) {}
func (Noop) RecordImport(string, string, int) {}
