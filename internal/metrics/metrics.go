// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	urlsetAdmissionsTotal      *prometheus.CounterVec
	urlsetResizesTotal         *prometheus.CounterVec
	urlsetCapacity             *prometheus.GaugeVec
	crawlerVisitedURLs         prometheus.Gauge
	poolOutstandingTasks       prometheus.Gauge
	poolActiveWorkers          prometheus.Gauge
	poolTasksTotal             *prometheus.CounterVec
	poolTaskDurationSeconds    prometheus.Histogram
	crawlerFetchesTotal        *prometheus.CounterVec
	crawlerBytesTotal          *prometheus.CounterVec
	crawlerLinksDroppedTotal   *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once  sync.Once
	ready atomic.Bool
)

// Init registers the collectors on the package registry.
// It is safe to call this function multiple times. Observers are no-ops
// until Init has run.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		factory := promauto.With(registry)

		urlsetAdmissionsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlset_admissions_total",
				Help: "Add calls on the URL set, labeled by variant and result.",
			},
			[]string{"variant", "result"},
		)

		urlsetResizesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlset_resizes_total",
				Help: "Completed bucket array resizes, labeled by variant.",
			},
			[]string{"variant"},
		)

		urlsetCapacity = factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "urlset_capacity_buckets",
				Help: "Current bucket array capacity, labeled by variant.",
			},
			[]string{"variant"},
		)

		crawlerVisitedURLs = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_visited_urls",
				Help: "Number of URLs admitted to the visited set in the current run.",
			},
		)

		poolOutstandingTasks = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pool_outstanding_tasks",
				Help: "Tasks queued plus tasks executing.",
			},
		)

		poolActiveWorkers = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pool_active_workers",
				Help: "Number of workers currently executing a task.",
			},
		)

		poolTasksTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_tasks_total",
				Help: "Tasks finished by the pool, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		poolTaskDurationSeconds = factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pool_task_duration_seconds",
				Help:    "Histogram of task execution times.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		crawlerFetchesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of fetch attempts, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerLinksDroppedTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_links_dropped_total",
				Help: "Extracted links rejected during normalization, labeled by reason.",
			},
			[]string{"reason"},
		)

		httpRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		ready.Store(true)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the package registry.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// ObserveAdmission records one Add call on the URL set.
func ObserveAdmission(variant string, admitted bool) {
	if !ready.Load() {
		return
	}
	result := "duplicate"
	if admitted {
		result = "admitted"
	}
	urlsetAdmissionsTotal.WithLabelValues(variant, result).Inc()
}

// ObserveSetResize records a completed resize to capacity buckets.
func ObserveSetResize(variant string, capacity int) {
	if !ready.Load() {
		return
	}
	urlsetResizesTotal.WithLabelValues(variant).Inc()
	urlsetCapacity.WithLabelValues(variant).Set(float64(capacity))
}

// SetVisited publishes the visited set size.
func SetVisited(n int) {
	if !ready.Load() {
		return
	}
	crawlerVisitedURLs.Set(float64(n))
}

// SetOutstanding publishes the pool's outstanding-work counter.
func SetOutstanding(n int) {
	if !ready.Load() {
		return
	}
	poolOutstandingTasks.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if !ready.Load() {
		return
	}
	poolActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if !ready.Load() {
		return
	}
	poolActiveWorkers.Dec()
}

// ObserveTask records a finished task.
func ObserveTask(outcome string, duration time.Duration) {
	if !ready.Load() {
		return
	}
	poolTasksTotal.WithLabelValues(outcome).Inc()
	poolTaskDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetch records a fetch attempt.
func ObserveFetch(site string, status string, bytesFetched int) {
	if !ready.Load() {
		return
	}
	sanitizedSite := SanitizeSite(site)
	crawlerFetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveDroppedLink records a link rejected during normalization.
func ObserveDroppedLink(reason string) {
	if !ready.Load() {
		return
	}
	crawlerLinksDroppedTotal.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest increments the status server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if !ready.Load() {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
