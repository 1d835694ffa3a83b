package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/rwaddinsall/hcf2025/internal/version"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// SnapshotJob is the Pushgateway job name for snapshot runs.
const SnapshotJob = "hcf_snapshot"

// SnapshotMetrics describes one snapshot CLI run. The process exits right
// after, so the values only reach Prometheus through Push.
type SnapshotMetrics struct {
	reg *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	items           *prometheus.GaugeVec
	runDuration     prometheus.Gauge
	outputBytes     prometheus.Gauge
	lastSuccess     prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
	published       prometheus.Gauge
	buildInfo       *prometheus.GaugeVec
}

func NewSnapshot() *SnapshotMetrics {
	m := &SnapshotMetrics{
		reg: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snapshot_strapi_request_duration_seconds",
			Help:    "CMS request latency per endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_strapi_requests_total",
			Help: "CMS requests per endpoint and result",
		}, []string{"endpoint", "result"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snapshot_items",
			Help: "Entries written per snapshot key",
		}, []string{"key"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_run_duration_seconds",
			Help: "Wall time of the last snapshot run",
		}),
		outputBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_output_bytes",
			Help: "Size of the snapshot file written",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_last_run_success",
			Help: "Whether the last run succeeded (1) or failed (0)",
		}),
		published: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_published",
			Help: "Whether the last run published to S3 (1) or only wrote the file (0)",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
	}
	m.reg.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.items,
		m.runDuration,
		m.outputBytes,
		m.lastSuccess,
		m.lastRunSuccess,
		m.published,
		m.buildInfo,
	)
	setBuildInfo(m.buildInfo, "snapshot", version.Get())
	return m
}

func (m *SnapshotMetrics) Registry() *prometheus.Registry { return m.reg }

// ObserveRequest records one CMS request; result is "ok", "not_found" or
// "error".
func (m *SnapshotMetrics) ObserveRequest(endpoint, result string, d time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, result).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *SnapshotMetrics) SetItems(key string, n int) {
	m.items.WithLabelValues(key).Set(float64(n))
}

func (m *SnapshotMetrics) SetOutputBytes(n int) { m.outputBytes.Set(float64(n)) }

func (m *SnapshotMetrics) SetPublished(ok bool) { m.published.Set(boolGauge(ok)) }

// Finish stamps the run outcome. A failed run drops the last-success gauge
// from the registry so pushing it leaves the previous value in place.
func (m *SnapshotMetrics) Finish(ok bool, elapsed time.Duration, now time.Time) {
	m.runDuration.Set(elapsed.Seconds())
	m.lastRunSuccess.Set(boolGauge(ok))
	if ok {
		m.lastSuccess.Set(float64(now.Unix()))
		return
	}
	m.reg.Unregister(m.lastSuccess)
}

// Push adds the registry to the Pushgateway group for SnapshotJob and
// instance. Metrics of the same name are replaced; others are kept.
func (m *SnapshotMetrics) Push(ctx context.Context, url, instance string) error {
	p := push.New(url, SnapshotJob).Gatherer(m.reg)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	if err := p.AddContext(ctx); err != nil {
		return xerrors.Wrapf(err, "push metrics to %s", url)
	}
	return nil
}
