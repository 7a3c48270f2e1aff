package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 任务结果标签。
const (
	TaskSucceeded = "succeeded"
	TaskRetrying  = "retrying"
	TaskDropped   = "dropped"
	TaskFailed    = "failed"
)

var (
	taskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gapgiraffe",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "后台任务处理次数，按任务类型与结果分组。",
		},
		[]string{"task_type", "outcome"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gapgiraffe",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "后台任务耗时分布（秒）；分析任务包含编排服务的等待时间。",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"task_type"},
	)
)

// taskOutcome 将处理结果归类：SkipRetry 视为丢弃，最后一次重试仍失败视为失败。
func taskOutcome(ctx context.Context, err error) string {
	if err == nil {
		return TaskSucceeded
	}
	if errors.Is(err, asynq.SkipRetry) {
		return TaskDropped
	}
	retried, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if ok1 && ok2 && retried >= maxRetry {
		return TaskFailed
	}
	return TaskRetrying
}

// AsynqMetricsMiddleware 记录任务耗时与结果。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskDuration.WithLabelValues(task.Type()).Observe(time.Since(start).Seconds())
			taskOutcomes.WithLabelValues(task.Type(), taskOutcome(ctx, err)).Inc()
			return err
		})
	}
}
