package repository

import (
	"context"
	"fmt"

	"gapgiraffe/internal/docstore"
)

// CreateApplication stores a new application and returns its key. Status
// defaults to saved and an empty history is started with that status.
func (r *Repository) CreateApplication(ctx context.Context, app Application) (int64, error) {
	if app.JobID <= 0 {
		return 0, validationError("application needs a job_id")
	}
	if app.Status == "" {
		app.Status = StatusSaved
	}
	if !app.Status.Valid() {
		return 0, validationError("unknown status %q", app.Status)
	}

	now := r.Now()
	if len(app.StatusHistory) == 0 {
		app.StatusHistory = []StatusChange{{Status: app.Status, Timestamp: now}}
	}
	if err := checkHistory(app.Status, app.StatusHistory); err != nil {
		return 0, err
	}
	if app.Reminders == nil {
		app.Reminders = []Reminder{}
	}
	app.UpdatedAt = now

	id, err := r.store.Insert(ctx, docstore.Applications, app)
	if err != nil {
		return 0, fmt.Errorf("create application: %w", err)
	}
	return id, nil
}

// GetApplication returns the application at id or nil.
func (r *Repository) GetApplication(ctx context.Context, id int64) (*Application, error) {
	return getOne[Application](ctx, r.store, docstore.Applications, id)
}

// GetApplicationsForJob returns the applications tracking jobID.
func (r *Repository) GetApplicationsForJob(ctx context.Context, jobID int64) ([]Application, error) {
	raws, err := r.store.FindByIndex(ctx, docstore.Applications, "job_id", jobID)
	if err != nil {
		return nil, fmt.Errorf("list applications for job %d: %w", jobID, err)
	}
	return decodeAll[Application](raws)
}

// GetApplicationsByStatus returns the applications currently in status.
func (r *Repository) GetApplicationsByStatus(ctx context.Context, status Status) ([]Application, error) {
	if !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}
	raws, err := r.store.FindByIndex(ctx, docstore.Applications, "status", string(status))
	if err != nil {
		return nil, fmt.Errorf("list applications by status: %w", err)
	}
	return decodeAll[Application](raws)
}

// GetAllApplications returns every application by ascending key.
func (r *Repository) GetAllApplications(ctx context.Context) ([]Application, error) {
	raws, err := r.store.GetAll(ctx, docstore.Applications)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return decodeAll[Application](raws)
}

// UpdateApplication merges update onto the application at id. A status
// change must come with the full history, extending the stored one and
// ending in the new status.
func (r *Repository) UpdateApplication(ctx context.Context, id int64, update ApplicationUpdate) error {
	current, err := r.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("update application %d: %w", id, ErrNotFound)
	}

	if update.Status != nil || update.StatusHistory != nil {
		if update.Status == nil || update.StatusHistory == nil {
			return validationError("status and status_history must be updated together")
		}
		if !update.Status.Valid() {
			return validationError("unknown status %q", *update.Status)
		}
		if err := checkHistory(*update.Status, update.StatusHistory); err != nil {
			return err
		}
		if !extendsHistory(current.StatusHistory, update.StatusHistory) {
			return validationError("status_history may only be appended to")
		}
	}
	for _, rem := range update.Reminders {
		if rem.ID == "" {
			return validationError("reminder id is required")
		}
	}

	fields, err := mergePatch(update, map[string]any{"updated_at": r.Now()})
	if err != nil {
		return err
	}
	if err := r.store.Update(ctx, docstore.Applications, id, fields); err != nil {
		return fmt.Errorf("update application %d: %w", id, err)
	}
	return nil
}

func checkHistory(status Status, history []StatusChange) error {
	if len(history) == 0 {
		return validationError("status_history must not be empty")
	}
	for _, entry := range history {
		if !entry.Status.Valid() {
			return validationError("unknown status %q in history", entry.Status)
		}
	}
	if last := history[len(history)-1].Status; last != status {
		return validationError("status %q does not match history tail %q", status, last)
	}
	return nil
}

func extendsHistory(stored, next []StatusChange) bool {
	if len(next) < len(stored) {
		return false
	}
	for i, entry := range stored {
		if next[i].Status != entry.Status || !next[i].Timestamp.Equal(entry.Timestamp) {
			return false
		}
	}
	return true
}
