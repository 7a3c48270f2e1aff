package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAsynqMetricsMiddlewareCountsOutcomes(t *testing.T) {
	handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
		switch string(task.Payload()) {
		case "skip":
			return fmt.Errorf("bad payload: %w", asynq.SkipRetry)
		case "fail":
			return errors.New("boom")
		}
		return nil
	}))

	ctx := context.Background()
	_ = handler.ProcessTask(ctx, asynq.NewTask("test:ok", nil))
	_ = handler.ProcessTask(ctx, asynq.NewTask("test:skip", []byte("skip")))
	_ = handler.ProcessTask(ctx, asynq.NewTask("test:fail", []byte("fail")))

	assert.Equal(t, 1.0, testutil.ToFloat64(taskOutcomes.WithLabelValues("test:ok", TaskSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(taskOutcomes.WithLabelValues("test:skip", TaskDropped)))
	// Without asynq retry metadata in ctx the attempt is not known to be final.
	assert.Equal(t, 1.0, testutil.ToFloat64(taskOutcomes.WithLabelValues("test:fail", TaskRetrying)))
}

func TestGinMiddlewareUsesRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/test/jobs/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test/jobs/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test/jobs/2", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test/nowhere/3", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/test/jobs/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
}

func TestObserveStoreOperationCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(storeOperationErrors.WithLabelValues("test_op", "jobs"))
	ObserveStoreOperation("test_op", "jobs", time.Millisecond, nil)
	ObserveStoreOperation("test_op", "jobs", time.Millisecond, errors.New("x"))
	assert.Equal(t, before+1, testutil.ToFloat64(storeOperationErrors.WithLabelValues("test_op", "jobs")))
}
