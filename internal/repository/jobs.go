package repository

import (
	"context"
	"fmt"
	"strings"

	"gapgiraffe/internal/docstore"
)

// CreateJob stores a new job and returns its key. A job whose URL is already
// stored fails with ErrDuplicateKey; callers look the job up by URL first.
func (r *Repository) CreateJob(ctx context.Context, job Job) (int64, error) {
	if strings.TrimSpace(job.URL) == "" {
		return 0, validationError("job url is required")
	}
	if strings.TrimSpace(job.Title) == "" {
		return 0, validationError("job title is required")
	}
	for field, c := range map[string]Confidence{
		"title_confidence":       job.TitleConfidence,
		"company_confidence":     job.CompanyConfidence,
		"description_confidence": job.DescriptionConfidence,
	} {
		if c != "" && !c.Valid() {
			return 0, validationError("unknown %s %q", field, c)
		}
	}
	if job.ScrapedAt.IsZero() {
		job.ScrapedAt = r.Now()
	}

	id, err := r.store.Insert(ctx, docstore.Jobs, job)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

// GetJob returns the job at id or nil.
func (r *Repository) GetJob(ctx context.Context, id int64) (*Job, error) {
	return getOne[Job](ctx, r.store, docstore.Jobs, id)
}

// GetJobByURL returns the job stored for url or nil.
func (r *Repository) GetJobByURL(ctx context.Context, url string) (*Job, error) {
	return findFirst[Job](ctx, r.store, docstore.Jobs, "url", url)
}

// GetAllJobs returns every job by ascending key.
func (r *Repository) GetAllJobs(ctx context.Context) ([]Job, error) {
	raws, err := r.store.GetAll(ctx, docstore.Jobs)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return decodeAll[Job](raws)
}

// GetJobsByAnalyzed returns the jobs whose analyzed flag equals analyzed.
func (r *Repository) GetJobsByAnalyzed(ctx context.Context, analyzed bool) ([]Job, error) {
	raws, err := r.store.FindByIndex(ctx, docstore.Jobs, "analyzed", analyzed)
	if err != nil {
		return nil, fmt.Errorf("list jobs by analyzed: %w", err)
	}
	return decodeAll[Job](raws)
}

// GetJobsByScoreRange returns jobs with min <= match_score <= max, lowest score first.
func (r *Repository) GetJobsByScoreRange(ctx context.Context, min, max float64) ([]Job, error) {
	if min > max {
		return nil, validationError("score range %v..%v is empty", min, max)
	}
	raws, err := r.store.FindRange(ctx, docstore.Jobs, "match_score", min, max)
	if err != nil {
		return nil, fmt.Errorf("list jobs by score: %w", err)
	}
	return decodeAll[Job](raws)
}

// UpdateJob merges update onto the job at id.
func (r *Repository) UpdateJob(ctx context.Context, id int64, update JobUpdate) error {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return validationError("job title must not be empty")
	}
	for _, c := range []*Confidence{update.TitleConfidence, update.CompanyConfidence, update.DescriptionConfidence} {
		if c != nil && !c.Valid() {
			return validationError("unknown confidence %q", *c)
		}
	}
	if update.MatchScore != nil && (*update.MatchScore < 0 || *update.MatchScore > 100) {
		return validationError("match score %v is outside 0..100", *update.MatchScore)
	}

	fields, err := mergePatch(update, nil)
	if err != nil {
		return err
	}
	if err := r.store.Update(ctx, docstore.Jobs, id, fields); err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	return nil
}
