package tracker

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gapgiraffe/internal/repository"
)

const (
	exportDateLayout = "2006-01-02"
	notAvailable     = "N/A"
)

// ExportHeader is the first row of the CSV export.
var ExportHeader = []string{
	"Company",
	"Job Title",
	"Status",
	"Match Score",
	"Applied Date",
	"Interview Date",
	"Notes",
	"Job URL",
	"Created At",
	"Updated At",
}

// FormatStatus renders a status for people: "interview_scheduled" becomes
// "Interview Scheduled".
func FormatStatus(status repository.Status) string {
	words := strings.Split(string(status), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ExportFileName names an export produced at now.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("job-applications-%s.csv", now.UTC().Format(exportDateLayout))
}

// ExportRow renders one application joined with its job.
func ExportRow(app repository.Application, job *repository.Job) []string {
	companyName, title, url, matchScore := notAvailable, notAvailable, "", notAvailable
	if job != nil {
		if job.Company != "" {
			companyName = job.Company
		}
		if job.Title != "" {
			title = job.Title
		}
		url = job.URL
		if job.MatchScore != nil && *job.MatchScore != 0 {
			matchScore = strconv.FormatFloat(*job.MatchScore, 'f', -1, 64)
		}
	}
	created := ""
	if len(app.StatusHistory) > 0 {
		created = formatDate(app.StatusHistory[0].Timestamp)
	}
	return []string{
		companyName,
		title,
		FormatStatus(app.Status),
		matchScore,
		formatDatePtr(app.AppliedAt),
		formatDatePtr(app.InterviewDate),
		app.Notes,
		url,
		created,
		formatDate(app.UpdatedAt),
	}
}

// WriteCSV writes the header and one row per application in apps order.
// Every field is quoted and embedded quotes are doubled.
func WriteCSV(w io.Writer, apps []repository.Application, jobs map[int64]repository.Job) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, ExportHeader); err != nil {
		return err
	}
	for _, app := range apps {
		var job *repository.Job
		if j, ok := jobs[app.JobID]; ok {
			job = &j
		}
		if err := writeRecord(bw, ExportRow(app, job)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(exportDateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}
