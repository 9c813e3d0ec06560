package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var intakeTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "intake",
		Name:      "uploads_total",
		Help:      "简历 PDF 导入次数，按结果区分（ok/rejected/infected/extract_error/error）。",
	},
	[]string{"outcome"},
)

// IncIntake 记录一次简历导入。
func IncIntake(outcome string) {
	intakeTotal.WithLabelValues(outcome).Inc()
}
