package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeJobAnalyze         = "job:analyze"
	TypeApplicationsExport = "applications:export"
)

// JobAnalyzePayload 描述一次岗位匹配分析。
type JobAnalyzePayload struct {
	JobID         int64  `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
}

// ApplicationsExportPayload 描述一次投递记录导出。
type ApplicationsExportPayload struct {
	CorrelationID string `json:"correlation_id"`
}

// NewJobAnalyzeTask 构造岗位分析任务。
func NewJobAnalyzeTask(jobID int64, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(JobAnalyzePayload{
		JobID:         jobID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeJobAnalyze, payload), nil
}

// NewApplicationsExportTask 构造投递记录导出任务。
func NewApplicationsExportTask(correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ApplicationsExportPayload{CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeApplicationsExport, payload), nil
}

// DecodeJobAnalyze 解析岗位分析任务载荷。
func DecodeJobAnalyze(task *asynq.Task) (JobAnalyzePayload, error) {
	var p JobAnalyzePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	if p.JobID <= 0 {
		return p, fmt.Errorf("decode %s payload: job_id is required", task.Type())
	}
	return p, nil
}

// DecodeApplicationsExport 解析导出任务载荷。
func DecodeApplicationsExport(task *asynq.Task) (ApplicationsExportPayload, error) {
	var p ApplicationsExportPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	return p, nil
}
