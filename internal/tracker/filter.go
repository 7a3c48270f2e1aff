package tracker

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"gapgiraffe/internal/repository"
)

// SortKey orders a filtered application list.
type SortKey string

const (
	SortRecent  SortKey = "recent"
	SortOldest  SortKey = "oldest"
	SortScore   SortKey = "score"
	SortCompany SortKey = "company"
)

// StatusAll disables status filtering.
const StatusAll = "all"

// Options selects and orders applications for FilterAndSort.
type Options struct {
	// Status is a status name or "all". Empty means all.
	Status string `form:"status" json:"status"`
	// Search matches case-insensitively against the job title and company.
	Search string  `form:"search" json:"search"`
	Sort   SortKey `form:"sort" json:"sort"`
}

// Entry is an application joined with its job. Job is nil when the job no
// longer exists.
type Entry struct {
	Application repository.Application `json:"application"`
	Job         *repository.Job        `json:"job"`
}

// FilterAndSort joins apps with jobs, filters and sorts them. The sort is
// stable, so ties keep the order of apps. Neither argument is modified.
func FilterAndSort(apps []repository.Application, jobs map[int64]repository.Job, opts Options) []Entry {
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	status := strings.TrimSpace(opts.Status)

	entries := make([]Entry, 0, len(apps))
	for _, app := range apps {
		if status != "" && status != StatusAll && string(app.Status) != status {
			continue
		}
		var job *repository.Job
		if j, ok := jobs[app.JobID]; ok {
			job = &j
		}
		if search != "" {
			if job == nil {
				continue
			}
			haystack := strings.ToLower(job.Title + " " + job.Company)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		entries = append(entries, Entry{Application: app, Job: job})
	}

	var less func(a, b Entry) bool
	switch opts.Sort {
	case SortOldest:
		less = func(a, b Entry) bool {
			return a.Application.UpdatedAt.Before(b.Application.UpdatedAt)
		}
	case SortScore:
		less = func(a, b Entry) bool { return score(a) > score(b) }
	case SortCompany:
		col := collate.New(language.English, collate.IgnoreCase)
		less = func(a, b Entry) bool { return col.CompareString(company(a), company(b)) < 0 }
	default:
		less = func(a, b Entry) bool {
			return a.Application.UpdatedAt.After(b.Application.UpdatedAt)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	return entries
}

func score(e Entry) float64 {
	if e.Job == nil || e.Job.MatchScore == nil {
		return 0
	}
	return *e.Job.MatchScore
}

func company(e Entry) string {
	if e.Job == nil {
		return ""
	}
	return e.Job.Company
}
