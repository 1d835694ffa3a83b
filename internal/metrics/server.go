// Package metrics owns the Prometheus registries: one for the long-running
// server and one for a snapshot CLI run, which is pushed to a Pushgateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rwaddinsall/hcf2025/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	httpPanicTotal prometheus.Counter
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	contentSource           *prometheus.GaugeVec
	contentSnapshotInfo     *prometheus.GaugeVec
	contentLoadedTimestamp  prometheus.Gauge
	contentFetchedTimestamp prometheus.Gauge
	contentItems            *prometheus.GaugeVec
	fileReloadsTotal        *prometheus.CounterVec

	profilingActive prometheus.Gauge

	watcherPollsTotal    prometheus.Counter
	watcherSwapsTotal    prometheus.Counter
	watcherErrorsTotal   *prometheus.CounterVec
	snapshotLoadDuration prometheus.Histogram
	watcherLastSuccessTs prometheus.Gauge
	watcherStale         prometheus.Gauge
}

// NewServer returns a fresh registry with the Go and process collectors and
// the server's own metrics. HTTP labels are limited to method, route and
// status.
func NewServer() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 9),
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx responses by method and route",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times the rate limiter ran out of visitor slots",
		}),
		contentSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Where the active snapshot came from (value is always 1)",
		}, []string{"source"}),
		contentSnapshotInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_snapshot_info",
			Help: "Active snapshot identity (value is always 1)",
		}, []string{"sha256", "fetched_at"}),
		contentLoadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix time the active snapshot was loaded",
		}),
		contentFetchedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_fetched_timestamp_seconds",
			Help: "Unix time the active snapshot was fetched from the CMS",
		}),
		contentItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_items",
			Help: "Entries per snapshot key in the active snapshot",
		}, []string{"key"}),
		fileReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_file_reloads_total",
			Help: "Snapshot file reloads by result",
		}, []string{"result"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		watcherPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_polls_total",
			Help: "Total number of release pointer polls",
		}),
		watcherSwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_swaps_total",
			Help: "Total number of successful snapshot swaps",
		}),
		watcherErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_watcher_errors_total",
			Help: "Total watcher errors by type",
		}, []string{"type"}),
		snapshotLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_snapshot_load_duration_seconds",
			Help:    "Time to download, verify, and index a snapshot",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		watcherLastSuccessTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_last_success_timestamp_seconds",
			Help: "Unix time of the last successful release pointer poll",
		}),
		watcherStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_stale",
			Help: "Whether the content watcher is stale (1) or healthy (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.contentSource,
		m.contentSnapshotInfo,
		m.contentLoadedTimestamp,
		m.contentFetchedTimestamp,
		m.contentItems,
		m.fileReloadsTotal,
		m.profilingActive,
		m.watcherPollsTotal,
		m.watcherSwapsTotal,
		m.watcherErrorsTotal,
		m.snapshotLoadDuration,
		m.watcherLastSuccessTs,
		m.watcherStale,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) Registry() *prometheus.Registry { return m.reg }

func (m *ServerMetrics) IncHTTPPanic() { m.httpPanicTotal.Inc() }

// SetBuildInfo is called once at startup.
func (m *ServerMetrics) SetBuildInfo(component string, vi version.Info) {
	setBuildInfo(m.buildInfo, component, vi)
}

func setBuildInfo(g *prometheus.GaugeVec, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	g.With(prometheus.Labels{
		"app":         vi.AppName,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildID,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied()   { m.ratelimitDeniedTotal.Inc() }
func (m *ServerMetrics) IncRateLimitCapacity() { m.ratelimitCapacityTotal.Inc() }

func (m *ServerMetrics) SetProfilingActive(active bool) {
	m.profilingActive.Set(boolGauge(active))
}

// ContentSnapshot is what the server reports about a snapshot it swapped
// in; it mirrors content.Meta without importing it.
type ContentSnapshot struct {
	SHA256    string
	FetchedAt string
	Source    string
	LoadedAt  time.Time
	Items     map[string]int
}

// SetContentSnapshot replaces every content_* identity gauge.
func (m *ServerMetrics) SetContentSnapshot(s ContentSnapshot) {
	m.contentSource.Reset()
	m.contentSource.WithLabelValues(s.Source).Set(1)
	m.contentSnapshotInfo.Reset()
	m.contentSnapshotInfo.WithLabelValues(s.SHA256, s.FetchedAt).Set(1)
	m.contentLoadedTimestamp.Set(float64(s.LoadedAt.Unix()))
	if t, err := time.Parse(time.RFC3339Nano, s.FetchedAt); err == nil {
		m.contentFetchedTimestamp.Set(float64(t.Unix()))
	}
	m.contentItems.Reset()
	for k, n := range s.Items {
		m.contentItems.WithLabelValues(k).Set(float64(n))
	}
}

// IncFileReload counts a snapshot file reload; result is "swapped",
// "unchanged" or "error".
func (m *ServerMetrics) IncFileReload(result string) {
	m.fileReloadsTotal.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) IncWatcherPolls() { m.watcherPollsTotal.Inc() }
func (m *ServerMetrics) IncWatcherSwaps() { m.watcherSwapsTotal.Inc() }

func (m *ServerMetrics) IncWatcherError(errType string) {
	m.watcherErrorsTotal.WithLabelValues(errType).Inc()
}

func (m *ServerMetrics) ObserveSnapshotLoadDuration(seconds float64) {
	m.snapshotLoadDuration.Observe(seconds)
}

func (m *ServerMetrics) SetWatcherLastSuccess(unixSeconds float64) {
	m.watcherLastSuccessTs.Set(unixSeconds)
}

func (m *ServerMetrics) SetWatcherStale(stale bool) { m.watcherStale.Set(boolGauge(stale)) }

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
