package tracker

import (
	"time"

	"gapgiraffe/internal/repository"
)

// Statistics summarizes a set of applications. Rates are percentages in
// 0..100 and are not rounded.
type Statistics struct {
	Total    int                       `json:"total"`
	ByStatus map[repository.Status]int `json:"by_status"`
	// SuccessRate is the share of applications in offer or accepted.
	SuccessRate float64 `json:"success_rate"`
	// AverageDaysToInterview averages applied_at to interview_date over the
	// applications that have both; nil when none do.
	AverageDaysToInterview *float64 `json:"average_days_to_interview"`
	// AverageDaysToOffer averages the first applied history entry to the
	// first offer history entry; nil when no application has both.
	AverageDaysToOffer *float64 `json:"average_days_to_offer"`
	Funnel             Funnel   `json:"funnel"`
	// ResponseRate is the share of applied applications that moved past applied.
	ResponseRate float64 `json:"response_rate"`
	// Active counts applications in a non-terminal status.
	Active int `json:"active"`
}

// Funnel counts applications that reached each stage.
type Funnel struct {
	Total     int `json:"total"`
	Applied   int `json:"applied"`
	Interview int `json:"interview"`
	Offer     int `json:"offer"`
}

const day = 24 * time.Hour

// ComputeStatistics aggregates apps.
func ComputeStatistics(apps []repository.Application) Statistics {
	stats := Statistics{
		Total:    len(apps),
		ByStatus: make(map[repository.Status]int, len(repository.Statuses)),
	}
	for _, s := range repository.Statuses {
		stats.ByStatus[s] = 0
	}

	var (
		interviewDays []float64
		offerDays     []float64
	)
	for _, app := range apps {
		stats.ByStatus[app.Status]++
		if !app.Status.IsTerminal() {
			stats.Active++
		}
		if app.AppliedAt != nil && app.InterviewDate != nil {
			interviewDays = append(interviewDays, app.InterviewDate.Sub(*app.AppliedAt).Hours()/24)
		}
		applied, okApplied := firstEntry(app.StatusHistory, repository.StatusApplied)
		offer, okOffer := firstEntry(app.StatusHistory, repository.StatusOffer)
		if okApplied && okOffer {
			offerDays = append(offerDays, float64(offer.Sub(applied))/float64(day))
		}
	}

	by := stats.ByStatus
	if stats.Total > 0 {
		stats.SuccessRate = float64(by[repository.StatusOffer]+by[repository.StatusAccepted]) / float64(stats.Total) * 100
	}
	stats.AverageDaysToInterview = mean(interviewDays)
	stats.AverageDaysToOffer = mean(offerDays)

	stats.Funnel = Funnel{
		Total:   stats.Total,
		Applied: stats.Total - by[repository.StatusSaved],
		// Rejections are counted as having reached an interview.
		Interview: by[repository.StatusInterviewScheduled] +
			by[repository.StatusInterviewCompleted] +
			by[repository.StatusOffer] +
			by[repository.StatusAccepted] +
			by[repository.StatusRejected],
		Offer: by[repository.StatusOffer] + by[repository.StatusAccepted],
	}
	if stats.Funnel.Applied > 0 {
		responses := stats.Funnel.Applied - by[repository.StatusApplied]
		stats.ResponseRate = float64(responses) / float64(stats.Funnel.Applied) * 100
	}
	return stats
}

// firstEntry returns the timestamp of the first history entry with status.
func firstEntry(history []repository.StatusChange, status repository.Status) (time.Time, bool) {
	for _, entry := range history {
		if entry.Status == status {
			return entry.Timestamp, true
		}
	}
	return time.Time{}, false
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}
