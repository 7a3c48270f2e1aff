package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapgiraffe/internal/repository"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(days float64) time.Time {
	return base.Add(time.Duration(days * float64(24*time.Hour)))
}

func appWithHistory(statuses ...repository.Status) repository.Application {
	app := repository.Application{}
	for i, s := range statuses {
		app.StatusHistory = append(app.StatusHistory, repository.StatusChange{Status: s, Timestamp: at(float64(i))})
	}
	if len(statuses) > 0 {
		app.Status = statuses[len(statuses)-1]
	}
	return app
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil)

	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Equal(t, 0.0, stats.ResponseRate)
	assert.Nil(t, stats.AverageDaysToInterview)
	assert.Nil(t, stats.AverageDaysToOffer)
	assert.Len(t, stats.ByStatus, len(repository.Statuses))
	for _, s := range repository.Statuses {
		assert.Equal(t, 0, stats.ByStatus[s])
	}
}

func TestComputeStatisticsSuccessRate(t *testing.T) {
	apps := []repository.Application{
		{Status: repository.StatusOffer},
		{Status: repository.StatusAccepted},
		{Status: repository.StatusApplied},
	}
	stats := ComputeStatistics(apps)

	assert.Equal(t, 3, stats.Total)
	assert.InDelta(t, 200.0/3, stats.SuccessRate, 1e-9)
	assert.Equal(t, 1, stats.ByStatus[repository.StatusOffer])
	assert.Equal(t, 2, stats.Active)
}

func TestComputeStatisticsAverages(t *testing.T) {
	applied := at(0)
	interview := at(4)
	other := at(10)
	otherInterview := at(12)

	withDates := appWithHistory(repository.StatusSaved, repository.StatusApplied)
	withDates.AppliedAt = &applied
	withDates.InterviewDate = &interview

	second := appWithHistory(repository.StatusSaved)
	second.AppliedAt = &other
	second.InterviewDate = &otherInterview

	onlyApplied := appWithHistory(repository.StatusSaved)
	onlyApplied.AppliedAt = &applied

	// applied at day 1, offer at day 4, then back to screening and offer again.
	offered := appWithHistory(
		repository.StatusSaved,
		repository.StatusApplied,
		repository.StatusScreening,
		repository.StatusInterviewCompleted,
		repository.StatusOffer,
		repository.StatusScreening,
		repository.StatusOffer,
	)
	// offer without ever being applied does not count.
	noApplied := appWithHistory(repository.StatusSaved, repository.StatusOffer)

	stats := ComputeStatistics([]repository.Application{withDates, second, onlyApplied, offered, noApplied})

	require.NotNil(t, stats.AverageDaysToInterview)
	assert.InDelta(t, 3.0, *stats.AverageDaysToInterview, 1e-9)
	require.NotNil(t, stats.AverageDaysToOffer)
	assert.InDelta(t, 3.0, *stats.AverageDaysToOffer, 1e-9)
}

func TestComputeStatisticsFunnel(t *testing.T) {
	apps := []repository.Application{
		{Status: repository.StatusSaved},
		{Status: repository.StatusApplied},
		{Status: repository.StatusApplied},
		{Status: repository.StatusScreening},
		{Status: repository.StatusInterviewScheduled},
		{Status: repository.StatusOffer},
		{Status: repository.StatusRejected},
		{Status: repository.StatusWithdrawn},
	}
	stats := ComputeStatistics(apps)

	assert.Equal(t, Funnel{Total: 8, Applied: 7, Interview: 3, Offer: 1}, stats.Funnel)
	assert.InDelta(t, 500.0/7, stats.ResponseRate, 1e-9)
	assert.Equal(t, 6, stats.Active)
}
