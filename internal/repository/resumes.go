package repository

import (
	"context"
	"fmt"
	"strings"

	"gapgiraffe/internal/docstore"
)

// CreateResume stores a new resume and returns its key. The first resume
// stored becomes the master; asking for IsMaster swaps the master flag.
func (r *Repository) CreateResume(ctx context.Context, resume Resume) (int64, error) {
	if strings.TrimSpace(resume.Name) == "" {
		return 0, validationError("resume name is required")
	}
	if resume.OriginalContent == "" {
		return 0, validationError("resume content is required")
	}
	if !resume.FileType.Valid() {
		return 0, validationError("unknown file type %q", resume.FileType)
	}

	existing, err := r.store.GetAll(ctx, docstore.Resumes)
	if err != nil {
		return 0, fmt.Errorf("list resumes: %w", err)
	}
	makeMaster := resume.IsMaster || len(existing) == 0

	now := r.Now()
	resume.CreatedAt = now
	resume.UpdatedAt = now
	resume.IsMaster = false

	id, err := r.store.Insert(ctx, docstore.Resumes, resume)
	if err != nil {
		return 0, fmt.Errorf("create resume: %w", err)
	}
	if makeMaster {
		if err := r.SetMasterResume(ctx, id); err != nil {
			return id, err
		}
	}
	return id, nil
}

// GetResume returns the resume at id or nil.
func (r *Repository) GetResume(ctx context.Context, id int64) (*Resume, error) {
	return getOne[Resume](ctx, r.store, docstore.Resumes, id)
}

// GetAllResumes returns every resume by ascending key.
func (r *Repository) GetAllResumes(ctx context.Context) ([]Resume, error) {
	raws, err := r.store.GetAll(ctx, docstore.Resumes)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return decodeAll[Resume](raws)
}

// GetMasterResume returns the master resume with the lowest key, or nil.
// A swap interrupted between its two phases can leave zero or several
// masters; the lowest key wins.
func (r *Repository) GetMasterResume(ctx context.Context) (*Resume, error) {
	return findFirst[Resume](ctx, r.store, docstore.Resumes, "is_master", true)
}

// UpdateResume merges update onto the resume at id.
func (r *Repository) UpdateResume(ctx context.Context, id int64, update ResumeUpdate) error {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return validationError("resume name must not be empty")
	}
	if update.FileType != nil && !update.FileType.Valid() {
		return validationError("unknown file type %q", *update.FileType)
	}

	promote := update.IsMaster != nil && *update.IsMaster
	if promote {
		update.IsMaster = nil
	}

	fields, err := mergePatch(update, map[string]any{"updated_at": r.Now()})
	if err != nil {
		return err
	}
	if err := r.store.Update(ctx, docstore.Resumes, id, fields); err != nil {
		return fmt.Errorf("update resume %d: %w", id, err)
	}
	if promote {
		return r.SetMasterResume(ctx, id)
	}
	return nil
}

// DeleteResume removes the resume at id. Tailored versions that reference it
// are kept.
func (r *Repository) DeleteResume(ctx context.Context, id int64) error {
	if err := r.store.Delete(ctx, docstore.Resumes, id); err != nil {
		return fmt.Errorf("delete resume %d: %w", id, err)
	}
	return nil
}

// SetMasterResume clears is_master on every flagged resume, then sets it on id.
// The two phases are separate writes.
func (r *Repository) SetMasterResume(ctx context.Context, id int64) error {
	target, err := r.GetResume(ctx, id)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("set master resume %d: %w", id, ErrNotFound)
	}

	now := r.Now()
	masters, err := r.store.FindByIndex(ctx, docstore.Resumes, "is_master", true)
	if err != nil {
		return fmt.Errorf("find master resumes: %w", err)
	}
	current, err := decodeAll[Resume](masters)
	if err != nil {
		return err
	}
	for _, m := range current {
		if m.ID == id {
			continue
		}
		if err := r.store.Update(ctx, docstore.Resumes, m.ID, map[string]any{
			"is_master":  false,
			"updated_at": now,
		}); err != nil {
			return fmt.Errorf("unset master resume %d: %w", m.ID, err)
		}
	}

	if err := r.store.Update(ctx, docstore.Resumes, id, map[string]any{
		"is_master":  true,
		"updated_at": now,
	}); err != nil {
		return fmt.Errorf("set master resume %d: %w", id, err)
	}
	return nil
}
