package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapgiraffe/internal/docstore"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestRepository(t *testing.T) (*Repository, *testClock) {
	t.Helper()
	store := docstore.New(docstore.NewMemoryOpener())
	require.NoError(t, store.Initialize(context.Background(), docstore.CurrentVersion))
	t.Cleanup(func() { _ = store.Close() })

	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return New(store, WithClock(clock.Now)), clock
}

func ptr[T any](v T) *T { return &v }

func TestCreateJobDeduplicatesByURL(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	job := Job{URL: "https://x.com/job/1", Title: "Engineer", Company: "Acme"}
	first, err := repo.CreateJob(ctx, job)
	require.NoError(t, err)

	_, err = repo.CreateJob(ctx, job)
	require.ErrorIs(t, err, ErrDuplicateKey)

	found, err := repo.GetJobByURL(ctx, "https://x.com/job/1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first, found.ID)

	all, err := repo.GetAllJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"job without url", func() error { _, err := repo.CreateJob(ctx, Job{Title: "x"}); return err }},
		{"job without title", func() error { _, err := repo.CreateJob(ctx, Job{URL: "u"}); return err }},
		{"job with bad confidence", func() error {
			_, err := repo.CreateJob(ctx, Job{URL: "u", Title: "t", TitleConfidence: "certain"})
			return err
		}},
		{"resume without name", func() error {
			_, err := repo.CreateResume(ctx, Resume{OriginalContent: "c", FileType: FileTypeText})
			return err
		}},
		{"resume with bad file type", func() error {
			_, err := repo.CreateResume(ctx, Resume{Name: "n", OriginalContent: "c", FileType: "rtf"})
			return err
		}},
		{"application without job", func() error { _, err := repo.CreateApplication(ctx, Application{}); return err }},
		{"application with bad status", func() error {
			_, err := repo.CreateApplication(ctx, Application{JobID: 1, Status: "ghosted"})
			return err
		}},
		{"version without resume", func() error {
			_, err := repo.CreateResumeVersion(ctx, ResumeVersion{ModifiedContent: "c"})
			return err
		}},
		{"model config without provider", func() error {
			_, err := repo.CreateModelConfig(ctx, ModelConfig{ModelName: "m"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), ErrValidation)
		})
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	job, err := repo.GetJob(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, job)

	resume, err := repo.GetResume(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, resume)

	master, err := repo.GetMasterResume(ctx)
	require.NoError(t, err)
	assert.Nil(t, master)

	byURL, err := repo.GetJobByURL(ctx, "https://nowhere")
	require.NoError(t, err)
	assert.Nil(t, byURL)
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	assert.ErrorIs(t, repo.UpdateJob(ctx, 9, JobUpdate{Title: ptr("x")}), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateResume(ctx, 9, ResumeUpdate{Name: ptr("x")}), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateApplication(ctx, 9, ApplicationUpdate{Notes: ptr("x")}), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateModelConfig(ctx, 9, ModelConfigUpdate{IsActive: ptr(false)}), ErrNotFound)
}

func TestUpdateMergesPartialFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	id, err := repo.CreateResume(ctx, Resume{Name: "cv", OriginalContent: "hello", FileType: FileTypeText})
	require.NoError(t, err)
	before, err := repo.GetResume(ctx, id)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateResume(ctx, id, ResumeUpdate{Name: ptr("cv v2")}))
	after, err := repo.GetResume(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "cv v2", after.Name)
	assert.Equal(t, "hello", after.OriginalContent)
	assert.Equal(t, FileTypeText, after.FileType)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestUpdateJobKeepsScrapedFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	id, err := repo.CreateJob(ctx, Job{
		URL:         "https://x.com/job/1",
		Title:       "Engineer",
		Company:     "Acme",
		Description: "Build things",
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateJob(ctx, id, JobUpdate{Analyzed: ptr(true), MatchScore: ptr(72.5)}))

	job, err := repo.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Engineer", job.Title)
	assert.Equal(t, "Build things", job.Description)
	assert.True(t, job.Analyzed)
	require.NotNil(t, job.MatchScore)
	assert.Equal(t, 72.5, *job.MatchScore)

	assert.ErrorIs(t, repo.UpdateJob(ctx, id, JobUpdate{MatchScore: ptr(120.0)}), ErrValidation)
}

func TestSetMasterResumeLeavesSingleMaster(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		id, err := repo.CreateResume(ctx, Resume{Name: name, OriginalContent: name, FileType: FileTypeText})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	master, err := repo.GetMasterResume(ctx)
	require.NoError(t, err)
	require.NotNil(t, master)
	assert.Equal(t, ids[0], master.ID, "first resume becomes master")

	require.NoError(t, repo.SetMasterResume(ctx, ids[1]))
	require.NoError(t, repo.SetMasterResume(ctx, ids[2]))

	all, err := repo.GetAllResumes(ctx)
	require.NoError(t, err)
	var masters []int64
	for _, r := range all {
		if r.IsMaster {
			masters = append(masters, r.ID)
		}
	}
	assert.Equal(t, []int64{ids[2]}, masters)

	assert.ErrorIs(t, repo.SetMasterResume(ctx, 999), ErrNotFound)
}

func TestCreateResumeAsMaster(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	first, err := repo.CreateResume(ctx, Resume{Name: "a", OriginalContent: "a", FileType: FileTypeText})
	require.NoError(t, err)
	second, err := repo.CreateResume(ctx, Resume{Name: "b", OriginalContent: "b", FileType: FileTypePDF, IsMaster: true})
	require.NoError(t, err)

	master, err := repo.GetMasterResume(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, master.ID)

	old, err := repo.GetResume(ctx, first)
	require.NoError(t, err)
	assert.False(t, old.IsMaster)
}

func TestJobQueries(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	scores := []float64{30, 90, 60}
	for i, score := range scores {
		id, err := repo.CreateJob(ctx, Job{URL: "https://x.com/" + string(rune('a'+i)), Title: "t"})
		require.NoError(t, err)
		require.NoError(t, repo.UpdateJob(ctx, id, JobUpdate{Analyzed: ptr(true), MatchScore: ptr(score)}))
	}
	_, err := repo.CreateJob(ctx, Job{URL: "https://x.com/pending", Title: "t"})
	require.NoError(t, err)

	pending, err := repo.GetJobsByAnalyzed(ctx, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://x.com/pending", pending[0].URL)

	ranged, err := repo.GetJobsByScoreRange(ctx, 50, 100)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, 60.0, *ranged[0].MatchScore)
	assert.Equal(t, 90.0, *ranged[1].MatchScore)

	_, err = repo.GetJobsByScoreRange(ctx, 80, 20)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResumeVersionQueries(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	jobID := int64(7)
	_, err := repo.CreateResumeVersion(ctx, ResumeVersion{ResumeID: 1, JobID: &jobID, ModifiedContent: "a"})
	require.NoError(t, err)
	_, err = repo.CreateResumeVersion(ctx, ResumeVersion{ResumeID: 1, ModifiedContent: "b"})
	require.NoError(t, err)
	_, err = repo.CreateResumeVersion(ctx, ResumeVersion{ResumeID: 2, JobID: &jobID, ModifiedContent: "c"})
	require.NoError(t, err)

	forResume, err := repo.GetResumeVersionsForResume(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, forResume, 2)

	forJob, err := repo.GetResumeVersionsForJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, forJob, 2)
	assert.Equal(t, "a", forJob[0].ModifiedContent)
	assert.Equal(t, "c", forJob[1].ModifiedContent)
}

func TestApplicationLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	id, err := repo.CreateApplication(ctx, Application{JobID: 3})
	require.NoError(t, err)

	app, err := repo.GetApplication(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, app.Status)
	require.Len(t, app.StatusHistory, 1)
	assert.Equal(t, StatusSaved, app.StatusHistory[0].Status)
	assert.NotNil(t, app.Reminders)
	assert.Nil(t, app.InterviewDate)

	err = repo.UpdateApplication(ctx, id, ApplicationUpdate{Status: ptr(StatusApplied)})
	assert.ErrorIs(t, err, ErrValidation)

	history := append(app.StatusHistory, StatusChange{Status: StatusApplied, Timestamp: app.UpdatedAt.Add(time.Hour)})
	err = repo.UpdateApplication(ctx, id, ApplicationUpdate{Status: ptr(StatusScreening), StatusHistory: history})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, repo.UpdateApplication(ctx, id, ApplicationUpdate{Status: ptr(StatusApplied), StatusHistory: history}))

	err = repo.UpdateApplication(ctx, id, ApplicationUpdate{
		Status:        ptr(StatusApplied),
		StatusHistory: history[1:],
	})
	assert.ErrorIs(t, err, ErrValidation, "history cannot be truncated")

	byStatus, err := repo.GetApplicationsByStatus(ctx, StatusApplied)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, id, byStatus[0].ID)

	saved, err := repo.GetApplicationsByStatus(ctx, StatusSaved)
	require.NoError(t, err)
	assert.Empty(t, saved)

	forJob, err := repo.GetApplicationsForJob(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, forJob, 1)
}

func TestUpdateApplicationKeepsInterviewFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	id, err := repo.CreateApplication(ctx, Application{JobID: 3})
	require.NoError(t, err)

	interview := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateApplication(ctx, id, ApplicationUpdate{
		InterviewDate:  &interview,
		InterviewNotes: ptr("panel"),
	}))
	require.NoError(t, repo.UpdateApplication(ctx, id, ApplicationUpdate{
		InterviewDate:  nil,
		InterviewNotes: nil,
		Notes:          ptr("follow up"),
	}))

	app, err := repo.GetApplication(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, app.InterviewDate, "nil fields are left as stored")
	assert.True(t, interview.Equal(*app.InterviewDate))
	require.NotNil(t, app.InterviewNotes)
	assert.Equal(t, "panel", *app.InterviewNotes)
	assert.Equal(t, "follow up", app.Notes)
}

func TestDefaultModelConfig(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	def, err := repo.GetDefaultModel(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "gemini", def.Provider)
	assert.Equal(t, "gemini-1.5-flash", def.ModelName)
	assert.Nil(t, def.APIKey)

	require.NoError(t, repo.UpdateModelConfig(ctx, def.ID, ModelConfigUpdate{APIKey: ptr("secret")}))
	def, err = repo.GetDefaultModel(ctx)
	require.NoError(t, err)
	require.NotNil(t, def.APIKey)
	assert.Equal(t, "secret", *def.APIKey)
	assert.True(t, def.IsDefault)

	id, err := repo.CreateModelConfig(ctx, ModelConfig{Provider: "openai", ModelName: "gpt-4o-mini"})
	require.NoError(t, err)
	all, err := repo.GetAllModelConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, id, all[1].ID)
}
