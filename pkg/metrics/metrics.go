package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 同步运行结果标签
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics 同步与手势相关的 Prometheus 指标
// 使用独立 Registry，测试中可多次创建互不冲突
type Metrics struct {
	reg *prometheus.Registry

	syncRuns       *prometheus.CounterVec
	blockedDays    prometheus.Counter
	syncDuration   prometheus.Histogram
	gestureCommits *prometheus.CounterVec
	leaseConflicts prometheus.Counter
}

// New 创建指标集合并注册 Go 运行时采集器
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		syncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hostcal_sync_runs_total",
			Help: "Total number of channel sync runs by outcome.",
		}, []string{"channel", "status"}),
		blockedDays: f.NewCounter(prometheus.CounterOpts{
			Name: "hostcal_sync_blocked_days_total",
			Help: "Total number of days newly closed by external feeds.",
		}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hostcal_sync_duration_seconds",
			Help:    "Wall-clock duration of a property sync run.",
			Buckets: []float64{0.1, 0.3, 1, 3, 6, 10, 20, 30, 60},
		}),
		gestureCommits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hostcal_gesture_commits_total",
			Help: "Total number of committed owner gestures by kind.",
		}, []string{"kind"}),
		leaseConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "hostcal_lease_conflicts_total",
			Help: "Total number of sync requests rejected because a lease was held.",
		}),
	}
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry 供测试读取指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ── 记录方法（nil 接收者安全，未启用指标时直接忽略） ──

func (m *Metrics) ObserveChannel(channel, status string, blocked int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(channel, status).Inc()
	if blocked > 0 {
		m.blockedDays.Add(float64(blocked))
	}
}

func (m *Metrics) ObserveSyncDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(d.Seconds())
}

func (m *Metrics) GestureCommitted(kind string) {
	if m == nil {
		return
	}
	m.gestureCommits.WithLabelValues(kind).Inc()
}

func (m *Metrics) LeaseConflict() {
	if m == nil {
		return
	}
	m.leaseConflicts.Inc()
}
