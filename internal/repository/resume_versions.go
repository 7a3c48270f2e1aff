package repository

import (
	"context"
	"fmt"

	"gapgiraffe/internal/docstore"
)

// CreateResumeVersion stores a tailored resume and returns its key.
func (r *Repository) CreateResumeVersion(ctx context.Context, version ResumeVersion) (int64, error) {
	if version.ResumeID <= 0 {
		return 0, validationError("resume version needs a resume_id")
	}
	if version.ModifiedContent == "" {
		return 0, validationError("resume version content is required")
	}
	version.CreatedAt = r.Now()

	id, err := r.store.Insert(ctx, docstore.ResumeVersions, version)
	if err != nil {
		return 0, fmt.Errorf("create resume version: %w", err)
	}
	return id, nil
}

// GetResumeVersion returns the version at id or nil.
func (r *Repository) GetResumeVersion(ctx context.Context, id int64) (*ResumeVersion, error) {
	return getOne[ResumeVersion](ctx, r.store, docstore.ResumeVersions, id)
}

// GetResumeVersionsForJob returns the versions tailored for jobID.
func (r *Repository) GetResumeVersionsForJob(ctx context.Context, jobID int64) ([]ResumeVersion, error) {
	raws, err := r.store.FindByIndex(ctx, docstore.ResumeVersions, "job_id", jobID)
	if err != nil {
		return nil, fmt.Errorf("list resume versions for job %d: %w", jobID, err)
	}
	return decodeAll[ResumeVersion](raws)
}

// GetResumeVersionsForResume returns the versions derived from resumeID.
func (r *Repository) GetResumeVersionsForResume(ctx context.Context, resumeID int64) ([]ResumeVersion, error) {
	raws, err := r.store.FindByIndex(ctx, docstore.ResumeVersions, "resume_id", resumeID)
	if err != nil {
		return nil, fmt.Errorf("list resume versions for resume %d: %w", resumeID, err)
	}
	return decodeAll[ResumeVersion](raws)
}
