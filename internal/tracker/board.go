package tracker

import "gapgiraffe/internal/repository"

// Column is a board column. Several statuses can share a column.
type Column string

const (
	ColumnSaved     Column = "saved"
	ColumnApplied   Column = "applied"
	ColumnScreening Column = "screening"
	ColumnInterview Column = "interview"
	ColumnOffer     Column = "offer"
	ColumnClosed    Column = "closed"
)

// Columns lists the board columns from left to right.
var Columns = []Column{
	ColumnSaved,
	ColumnApplied,
	ColumnScreening,
	ColumnInterview,
	ColumnOffer,
	ColumnClosed,
}

// ColumnFor returns the column an application in status is shown in.
func ColumnFor(status repository.Status) Column {
	switch status {
	case repository.StatusSaved:
		return ColumnSaved
	case repository.StatusApplied:
		return ColumnApplied
	case repository.StatusScreening:
		return ColumnScreening
	case repository.StatusInterviewScheduled, repository.StatusInterviewCompleted:
		return ColumnInterview
	case repository.StatusOffer:
		return ColumnOffer
	default:
		return ColumnClosed
	}
}

// DropStatus returns the status given to an application dropped on c.
// Dropping on the closed column rejects the application.
func (c Column) DropStatus() (repository.Status, bool) {
	switch c {
	case ColumnSaved:
		return repository.StatusSaved, true
	case ColumnApplied:
		return repository.StatusApplied, true
	case ColumnScreening:
		return repository.StatusScreening, true
	case ColumnInterview:
		return repository.StatusInterviewScheduled, true
	case ColumnOffer:
		return repository.StatusOffer, true
	case ColumnClosed:
		return repository.StatusRejected, true
	}
	return "", false
}

// Board maps each column to its cards in application order.
type Board map[Column][]Entry

// GroupByColumn places every application whose job exists into its column.
// Every column is present, possibly empty.
func GroupByColumn(apps []repository.Application, jobs map[int64]repository.Job) Board {
	board := make(Board, len(Columns))
	for _, c := range Columns {
		board[c] = []Entry{}
	}
	for _, app := range apps {
		job, ok := jobs[app.JobID]
		if !ok {
			continue
		}
		col := ColumnFor(app.Status)
		board[col] = append(board[col], Entry{Application: app, Job: &job})
	}
	return board
}
