package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "外部渲染流水线耗时分布（秒）。",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"pipeline", "outcome"},
	)

	renderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "requests_total",
			Help:      "渲染请求总数，按结果区分。",
		},
		[]string{"pipeline", "outcome"},
	)

	artifactPurgeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact",
			Name:      "purge_failures_total",
			Help:      "删除节点产物失败次数（已转入重试队列）。",
		},
	)
)

// ObserveRender 记录一次渲染。
func ObserveRender(pipeline, outcome string, elapsed time.Duration) {
	renderDuration.WithLabelValues(pipeline, outcome).Observe(elapsed.Seconds())
	renderTotal.WithLabelValues(pipeline, outcome).Inc()
}

// IncArtifactPurgeFailure 记录一次产物删除失败。
func IncArtifactPurgeFailure() {
	artifactPurgeFailures.Inc()
}
