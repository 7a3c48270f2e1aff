package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gapgiraffe/internal/metrics"
	"gapgiraffe/internal/repository"
)

var (
	// ErrTimeout is returned when the orchestrator does not answer in time.
	ErrTimeout = errors.New("analysis timed out")
	// ErrAnalysisFailed is returned when the orchestrator reports a failure.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// JobStore is the slice of the repository the service needs.
type JobStore interface {
	GetJob(ctx context.Context, id int64) (*repository.Job, error)
	GetMasterResume(ctx context.Context) (*repository.Resume, error)
	UpdateJob(ctx context.Context, id int64, update repository.JobUpdate) error
}

// Service scores jobs through an Analyzer and records the results.
type Service struct {
	store    JobStore
	analyzer Analyzer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService returns a Service that waits at most timeout for each analysis.
func NewService(store JobStore, analyzer Analyzer, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, analyzer: analyzer, timeout: timeout, logger: logger}
}

// AnalyzeJob scores the job against the master resume, if any, and records
// the result. On any failure the job is left unchanged and unanalyzed.
func (s *Service) AnalyzeJob(ctx context.Context, jobID int64) (*Result, error) {
	log := s.logger.With(slog.Int64("job_id", jobID))

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, repository.ErrNotFound)
	}

	req := Request{
		JobTitle:       job.Title,
		JobCompany:     job.Company,
		JobDescription: job.Description,
	}
	master, err := s.store.GetMasterResume(ctx)
	if err != nil {
		return nil, err
	}
	if master != nil {
		content := master.OriginalContent
		req.ResumeContent = &content
	}

	resp, err := s.call(ctx, req)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrTimeout) {
			outcome = "timeout"
		}
		metrics.RecordAnalysis(outcome)
		log.Warn("job analysis failed", slog.Any("error", err))
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		metrics.RecordAnalysis("failed")
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "orchestrator returned no data"
		}
		log.Warn("job analysis rejected", slog.String("reason", msg))
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, msg)
	}

	if err := s.Record(ctx, jobID, *resp.Data); err != nil {
		metrics.RecordAnalysis("failed")
		return nil, err
	}
	metrics.RecordAnalysis("success")
	log.Info("job analyzed", slog.Float64("match_score", resp.Data.MatchScore))
	return resp.Data, nil
}

// call races the analyzer against the timeout. The losing call is not
// cancelled; its result is dropped.
func (s *Service) call(ctx context.Context, req Request) (*Response, error) {
	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := s.analyzer.Analyze(context.WithoutCancel(ctx), req)
		done <- outcome{resp: resp, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, out.err)
		}
		if out.resp == nil {
			return nil, fmt.Errorf("%w: empty response", ErrAnalysisFailed)
		}
		return out.resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Record is the only writer of a job's analysis fields: it stores the report,
// copies its match score, joins its key requirements and marks the job analyzed.
func (s *Service) Record(ctx context.Context, jobID int64, result Result) error {
	if result.MatchScore < 0 || result.MatchScore > 100 {
		return fmt.Errorf("%w: match score %v is outside 0..100", repository.ErrValidation, result.MatchScore)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	score := result.MatchScore
	requirements := strings.Join(result.KeyRequirements, ", ")
	analyzed := true

	if err := s.store.UpdateJob(ctx, jobID, repository.JobUpdate{
		Analyzed:       &analyzed,
		AnalysisResult: raw,
		MatchScore:     &score,
		Requirements:   &requirements,
	}); err != nil {
		return fmt.Errorf("record analysis for job %d: %w", jobID, err)
	}
	return nil
}
