package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gapgiraffe",
			Subsystem: "docstore",
			Name:      "operation_duration_seconds",
			Help:      "文档存储操作耗时分布（秒）。",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "collection"},
	)

	storeOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gapgiraffe",
			Subsystem: "docstore",
			Name:      "operation_errors_total",
			Help:      "文档存储操作失败次数。",
		},
		[]string{"operation", "collection"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gapgiraffe",
			Subsystem: "tracker",
			Name:      "status_transitions_total",
			Help:      "投递状态流转次数。",
		},
		[]string{"from", "to"},
	)

	analysisOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gapgiraffe",
			Subsystem: "analysis",
			Name:      "requests_total",
			Help:      "岗位匹配分析请求结果计数。",
		},
		[]string{"outcome"},
	)
)

// ObserveStoreOperation 记录一次文档存储操作的耗时与结果。
func ObserveStoreOperation(operation, collection string, elapsed time.Duration, err error) {
	storeOperationDuration.WithLabelValues(operation, collection).Observe(elapsed.Seconds())
	if err != nil {
		storeOperationErrors.WithLabelValues(operation, collection).Inc()
	}
}

// RecordStatusTransition 记录一次状态流转。
func RecordStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordAnalysis 记录分析结果：success、failed 或 timeout。
func RecordAnalysis(outcome string) {
	analysisOutcomes.WithLabelValues(outcome).Inc()
}
