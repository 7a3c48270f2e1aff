package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapgiraffe/internal/analysis"
	"gapgiraffe/internal/errcode"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/tasks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePublisher struct {
	channels []string
	messages []Notification
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	var n Notification
	if data, ok := message.([]byte); ok {
		_ = json.Unmarshal(data, &n)
	}
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, n)
	cmd.SetVal(1)
	return cmd
}

type analyzerFunc func(ctx context.Context, jobID int64) (*analysis.Result, error)

func (f analyzerFunc) AnalyzeJob(ctx context.Context, jobID int64) (*analysis.Result, error) {
	return f(ctx, jobID)
}

func analyzeTask(t *testing.T, jobID int64) *asynq.Task {
	t.Helper()
	task, err := tasks.NewJobAnalyzeTask(jobID, "cid")
	require.NoError(t, err)
	return task
}

func TestAnalysisTaskPublishesResult(t *testing.T) {
	pub := &fakePublisher{}
	h := NewAnalysisTaskHandler(analyzerFunc(func(_ context.Context, id int64) (*analysis.Result, error) {
		assert.Equal(t, int64(4), id)
		return &analysis.Result{MatchScore: 81}, nil
	}), pub, discardLogger())

	require.NoError(t, h.ProcessTask(context.Background(), analyzeTask(t, 4)))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, NotifyChannel, pub.channels[0])
	msg := pub.messages[0]
	assert.Equal(t, EventJobAnalyzed, msg.Event)
	assert.Equal(t, "completed", msg.Status)
	assert.Equal(t, "cid", msg.CorrelationID)
	require.NotNil(t, msg.MatchScore)
	assert.Equal(t, 81.0, *msg.MatchScore)
}

func TestAnalysisTaskSkipsMissingJob(t *testing.T) {
	pub := &fakePublisher{}
	h := NewAnalysisTaskHandler(analyzerFunc(func(context.Context, int64) (*analysis.Result, error) {
		return nil, fmt.Errorf("job 4: %w", repository.ErrNotFound)
	}), pub, discardLogger())

	assert.NoError(t, h.ProcessTask(context.Background(), analyzeTask(t, 4)))
	assert.Empty(t, pub.messages)
}

func TestAnalysisTaskRetriesTimeoutsQuietly(t *testing.T) {
	pub := &fakePublisher{}
	h := NewAnalysisTaskHandler(analyzerFunc(func(context.Context, int64) (*analysis.Result, error) {
		return nil, analysis.ErrTimeout
	}), pub, discardLogger())

	err := h.ProcessTask(context.Background(), analyzeTask(t, 4))
	require.ErrorIs(t, err, analysis.ErrTimeout)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, pub.messages, "only the final attempt notifies")
}

func TestAnalysisTaskDoesNotRetryValidationErrors(t *testing.T) {
	pub := &fakePublisher{}
	h := NewAnalysisTaskHandler(analyzerFunc(func(context.Context, int64) (*analysis.Result, error) {
		return nil, fmt.Errorf("%w: score out of range", repository.ErrValidation)
	}), pub, discardLogger())

	err := h.ProcessTask(context.Background(), analyzeTask(t, 4))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "error", pub.messages[0].Status)
	assert.Equal(t, errcode.ValidationFailed, pub.messages[0].ErrorCode)
}

func TestAnalysisTaskRejectsBadPayload(t *testing.T) {
	h := NewAnalysisTaskHandler(nil, &fakePublisher{}, discardLogger())
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeJobAnalyze, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type exporterFunc func(ctx context.Context, w io.Writer) (int, error)

func (f exporterFunc) ExportCSV(ctx context.Context, w io.Writer) (int, error) { return f(ctx, w) }

type fakeExportStore struct {
	objects  map[string][]byte
	types    map[string]string
	fileName string
	err      error
}

func (s *fakeExportStore) UploadFile(_ context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
		s.types = map[string]string{}
	}
	s.objects[objectName] = data
	s.types[objectName] = contentType
	return &minio.UploadInfo{Key: objectName, Size: size}, nil
}

func (s *fakeExportStore) PresignedDownloadURL(_ context.Context, objectKey, fileName string, _ time.Duration) (string, error) {
	s.fileName = fileName
	return "https://files.local/" + objectKey, nil
}

func TestExportTaskUploadsCSV(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeExportStore{}
	h := NewExportTaskHandler(exporterFunc(func(_ context.Context, w io.Writer) (int, error) {
		_, err := io.WriteString(w, "\"Company\"\n\"Acme\"\n")
		return 1, err
	}), store, pub, discardLogger())
	h.now = func() time.Time { return time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC) }

	task, err := tasks.NewApplicationsExportTask("cid")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	require.Len(t, store.objects, 1)
	for key, data := range store.objects {
		assert.Regexp(t, `^exports/2024-07-09/[0-9a-f-]{36}\.csv$`, key)
		assert.Equal(t, "\"Company\"\n\"Acme\"\n", string(data))
		assert.Equal(t, "text/csv;charset=utf-8", store.types[key])
	}
	assert.Equal(t, "job-applications-2024-07-09.csv", store.fileName)

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, EventApplicationsExport, msg.Event)
	assert.Equal(t, "completed", msg.Status)
	assert.Equal(t, 1, msg.Rows)
	assert.Contains(t, msg.DownloadURL, "https://files.local/exports/")
}

func TestExportTaskUploadFailure(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeExportStore{err: errors.New("minio down")}
	h := NewExportTaskHandler(exporterFunc(func(_ context.Context, w io.Writer) (int, error) {
		return 0, nil
	}), store, pub, discardLogger())

	task, err := tasks.NewApplicationsExportTask("cid")
	require.NoError(t, err)
	assert.Error(t, h.ProcessTask(context.Background(), task))
	assert.Empty(t, pub.messages)
}

func TestExportTaskPermanentUploadFailure(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeExportStore{err: minio.ErrorResponse{Code: "AccessDenied", Message: "Access Denied."}}
	h := NewExportTaskHandler(exporterFunc(func(_ context.Context, w io.Writer) (int, error) {
		return 0, nil
	}), store, pub, discardLogger())

	task, err := tasks.NewApplicationsExportTask("cid")
	require.NoError(t, err)
	err = h.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "error", pub.messages[0].Status)
	assert.Equal(t, EventApplicationsExport, pub.messages[0].Event)
}

func TestPublishNotificationError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	err := publishNotification(context.Background(), pub, Notification{Event: EventJobAnalyzed})
	assert.ErrorContains(t, err, NotifyChannel)
}

