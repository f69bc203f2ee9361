package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP traffic and the
// keyword-research pipeline. All metrics live in a private registry so tests
// can construct collectors independently.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	newsItems       *prometheus.CounterVec
	candidateMoves  *prometheus.CounterVec
	runsStarted     prometheus.Counter
	tasksFinished   *prometheus.CounterVec
	taskCost        prometheus.Counter
	alertsTriggered *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trendwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	newsItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "harvest",
		Name:      "news_items_total",
		Help:      "News items processed by outcome (inserted/updated/skipped).",
	}, []string{"outcome"})

	candidateMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "candidates",
		Name:      "transitions_total",
		Help:      "Candidate status transitions by target status.",
	}, []string{"status"})

	runsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "runs",
		Name:      "started_total",
		Help:      "Research runs started.",
	})

	tasksFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "runs",
		Name:      "tasks_total",
		Help:      "Tasks reaching a terminal state, by status.",
	}, []string{"status"})

	taskCost := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "runs",
		Name:      "cost_total",
		Help:      "Accumulated probe cost across all runs.",
	})

	alertsTriggered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trendwatch",
		Subsystem: "alerts",
		Name:      "triggered_total",
		Help:      "Spike alerts created, by priority.",
	}, []string{"priority"})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal, newsItems, candidateMoves,
		runsStarted, tasksFinished, taskCost, alertsTriggered,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		newsItems:       newsItems,
		candidateMoves:  candidateMoves,
		runsStarted:     runsStarted,
		tasksFinished:   tasksFinished,
		taskCost:        taskCost,
		alertsTriggered: alertsTriggered,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// RecordHarvest counts one processed news entry by outcome.
func (c *Collector) RecordHarvest(outcome string, n int) {
	c.newsItems.WithLabelValues(outcome).Add(float64(n))
}

// RecordCandidateTransition counts one candidate status transition.
func (c *Collector) RecordCandidateTransition(status string) {
	c.candidateMoves.WithLabelValues(status).Inc()
}

// RecordRunStarted counts a run start.
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

// RecordTaskFinished counts a terminal task and its cost.
func (c *Collector) RecordTaskFinished(status string, cost float64) {
	c.tasksFinished.WithLabelValues(status).Inc()
	if cost > 0 {
		c.taskCost.Add(cost)
	}
}

// RecordAlert counts a triggered alert by priority.
func (c *Collector) RecordAlert(priority string) {
	c.alertsTriggered.WithLabelValues(priority).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
