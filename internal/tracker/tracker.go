package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gapgiraffe/internal/metrics"
	"gapgiraffe/internal/repository"
)

// DefaultTrackNote is recorded on the first history entry of a tracked job.
const DefaultTrackNote = "Job saved from analysis results"

// ApplicationStore is the slice of the repository the engine reads and writes.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id int64) (*repository.Application, error)
	GetAllApplications(ctx context.Context) ([]repository.Application, error)
	GetApplicationsForJob(ctx context.Context, jobID int64) ([]repository.Application, error)
	CreateApplication(ctx context.Context, app repository.Application) (int64, error)
	UpdateApplication(ctx context.Context, id int64, update repository.ApplicationUpdate) error
	GetJob(ctx context.Context, id int64) (*repository.Job, error)
	GetAllJobs(ctx context.Context) ([]repository.Job, error)
}

var _ ApplicationStore = (*repository.Repository)(nil)

// Engine runs the application status state machine.
//
// Each operation is a read followed by a write with no locking in between;
// two callers changing the same application concurrently can interleave.
type Engine struct {
	store  ApplicationStore
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now for history and reminder timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an Engine over store.
func New(store ApplicationStore, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) load(ctx context.Context, id int64) (*repository.Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("application %d: %w", id, repository.ErrNotFound)
	}
	return app, nil
}

// TrackJob starts tracking jobID with a saved application. If the job is
// already tracked its existing application is returned and created is false.
func (e *Engine) TrackJob(ctx context.Context, jobID int64, note string) (app *repository.Application, created bool, err error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, fmt.Errorf("job %d: %w", jobID, repository.ErrNotFound)
	}

	existing, err := e.store.GetApplicationsForJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return &existing[0], false, nil
	}

	if strings.TrimSpace(note) == "" {
		note = DefaultTrackNote
	}
	now := e.now().UTC()
	id, err := e.store.CreateApplication(ctx, repository.Application{
		JobID:  jobID,
		Status: repository.StatusSaved,
		StatusHistory: []repository.StatusChange{
			{Status: repository.StatusSaved, Timestamp: now, Note: note},
		},
		Reminders: []repository.Reminder{},
	})
	if err != nil {
		return nil, false, err
	}
	e.logger.Info("job tracked", slog.Int64("job_id", jobID), slog.Int64("application_id", id))

	app, err = e.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return app, true, nil
}

// Transition moves the application to status. Moving to the current status
// changes nothing. Any status may follow any other, including terminal ones.
func (e *Engine) Transition(ctx context.Context, id int64, status repository.Status, note string) (*repository.Application, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", repository.ErrValidation, status)
	}
	app, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status == status {
		return app, nil
	}

	from := app.Status
	history := make([]repository.StatusChange, 0, len(app.StatusHistory)+1)
	history = append(history, app.StatusHistory...)
	history = append(history, repository.StatusChange{
		Status:    status,
		Timestamp: e.now().UTC(),
		Note:      note,
	})

	if err := e.store.UpdateApplication(ctx, id, repository.ApplicationUpdate{
		Status:        &status,
		StatusHistory: history,
	}); err != nil {
		return nil, err
	}
	metrics.RecordStatusTransition(string(from), string(status))
	e.logger.Info("application status changed",
		slog.Int64("application_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(status)),
	)
	return e.load(ctx, id)
}

// AddReminder appends a new, incomplete reminder to the application.
func (e *Engine) AddReminder(ctx context.Context, id int64, title string, due time.Time) (repository.Reminder, error) {
	if strings.TrimSpace(title) == "" {
		return repository.Reminder{}, fmt.Errorf("%w: reminder title is required", repository.ErrValidation)
	}
	app, err := e.load(ctx, id)
	if err != nil {
		return repository.Reminder{}, err
	}

	reminder := repository.Reminder{
		ID:        uuid.NewString(),
		Title:     title,
		DueDate:   due.UTC(),
		Completed: false,
		CreatedAt: e.now().UTC(),
	}
	reminders := append(append([]repository.Reminder{}, app.Reminders...), reminder)
	if err := e.store.UpdateApplication(ctx, id, repository.ApplicationUpdate{Reminders: reminders}); err != nil {
		return repository.Reminder{}, err
	}
	return reminder, nil
}

// CompleteReminder sets the completed flag of one reminder. An unknown
// reminder id is ignored.
func (e *Engine) CompleteReminder(ctx context.Context, id int64, reminderID string, completed bool) error {
	app, err := e.load(ctx, id)
	if err != nil {
		return err
	}

	reminders := append([]repository.Reminder{}, app.Reminders...)
	found := false
	for i := range reminders {
		if reminders[i].ID == reminderID {
			reminders[i].Completed = completed
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return e.store.UpdateApplication(ctx, id, repository.ApplicationUpdate{Reminders: reminders})
}

// Statistics aggregates every stored application.
func (e *Engine) Statistics(ctx context.Context) (Statistics, error) {
	apps, err := e.store.GetAllApplications(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return ComputeStatistics(apps), nil
}

// List returns every application joined with its job, filtered and sorted.
func (e *Engine) List(ctx context.Context, opts Options) ([]Entry, error) {
	apps, err := e.store.GetAllApplications(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := e.jobsByID(ctx)
	if err != nil {
		return nil, err
	}
	return FilterAndSort(apps, jobs, opts), nil
}

// Board returns every application grouped into board columns.
func (e *Engine) Board(ctx context.Context) (Board, error) {
	apps, err := e.store.GetAllApplications(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := e.jobsByID(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByColumn(apps, jobs), nil
}

// MoveToColumn transitions the application to the status a board column stands for.
func (e *Engine) MoveToColumn(ctx context.Context, id int64, column Column) (*repository.Application, error) {
	status, ok := column.DropStatus()
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", repository.ErrValidation, column)
	}
	return e.Transition(ctx, id, status, "")
}

func (e *Engine) jobsByID(ctx context.Context) (map[int64]repository.Job, error) {
	jobs, err := e.store.GetAllJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]repository.Job, len(jobs))
	for _, job := range jobs {
		out[job.ID] = job
	}
	return out, nil
}

// ExportCSV writes every application joined with its job to w.
func (e *Engine) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	apps, err := e.store.GetAllApplications(ctx)
	if err != nil {
		return 0, err
	}
	jobs, err := e.jobsByID(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, apps, jobs); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(apps), nil
}
