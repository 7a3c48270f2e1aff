package repository

import (
	"encoding/json"
	"time"
)

// FileType is the format a resume was uploaded in.
type FileType string

const (
	FileTypeText FileType = "text"
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
)

// Valid reports whether t is a known file type.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeText, FileTypePDF, FileTypeDOCX:
		return true
	}
	return false
}

// Confidence is the extractor's certainty about a scraped field.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is a known confidence level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Status is the position of an application in the tracking state machine.
type Status string

const (
	StatusSaved              Status = "saved"
	StatusApplied            Status = "applied"
	StatusScreening          Status = "screening"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusInterviewCompleted Status = "interview_completed"
	StatusOffer              Status = "offer"
	StatusAccepted           Status = "accepted"
	StatusRejected           Status = "rejected"
	StatusWithdrawn          Status = "withdrawn"
)

// Statuses lists every status in funnel order.
var Statuses = []Status{
	StatusSaved,
	StatusApplied,
	StatusScreening,
	StatusInterviewScheduled,
	StatusInterviewCompleted,
	StatusOffer,
	StatusAccepted,
	StatusRejected,
	StatusWithdrawn,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends the application. Terminality is a hint
// for views; transitions out of a terminal status are still allowed.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusWithdrawn
}

// Resume is an uploaded resume.
type Resume struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	OriginalContent string    `json:"original_content"`
	FileType        FileType  `json:"file_type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	IsMaster        bool      `json:"is_master"`
}

// Job is a scraped job posting.
type Job struct {
	ID                    int64           `json:"id"`
	URL                   string          `json:"url"`
	Title                 string          `json:"title"`
	TitleConfidence       Confidence      `json:"title_confidence"`
	Company               string          `json:"company"`
	CompanyConfidence     Confidence      `json:"company_confidence"`
	Description           string          `json:"description"`
	DescriptionConfidence Confidence      `json:"description_confidence"`
	Requirements          string          `json:"requirements"`
	ScrapedAt             time.Time       `json:"scraped_at"`
	Analyzed              bool            `json:"analyzed"`
	AnalysisResult        json.RawMessage `json:"analysis_result,omitempty"`
	MatchScore            *float64        `json:"match_score"`
}

// ResumeVersion is a resume tailored for one job.
type ResumeVersion struct {
	ID              int64     `json:"id"`
	ResumeID        int64     `json:"resume_id"`
	JobID           *int64    `json:"job_id"`
	ModifiedContent string    `json:"modified_content"`
	CertaintyScore  float64   `json:"certainty_score"`
	ChangesSummary  string    `json:"changes_summary"`
	CreatedAt       time.Time `json:"created_at"`
}

// StatusChange is one entry of an application's status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Reminder is a to-do attached to an application.
type Reminder struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"due_date"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Application tracks the user's progress on one job.
type Application struct {
	ID              int64          `json:"id"`
	JobID           int64          `json:"job_id"`
	ResumeVersionID *int64         `json:"resume_version_id"`
	Status          Status         `json:"status"`
	StatusHistory   []StatusChange `json:"status_history"`
	AppliedAt       *time.Time     `json:"applied_at"`
	InterviewDate   *time.Time     `json:"interview_date"`
	InterviewNotes  *string        `json:"interview_notes"`
	Reminders       []Reminder     `json:"reminders"`
	Notes           string         `json:"notes"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CreatedAt is the timestamp of the first history entry, or the zero time.
func (a Application) CreatedAt() time.Time {
	if len(a.StatusHistory) == 0 {
		return time.Time{}
	}
	return a.StatusHistory[0].Timestamp
}

// ModelConfig describes an AI provider configuration.
type ModelConfig struct {
	ID           int64     `json:"id"`
	Provider     string    `json:"provider"`
	ModelName    string    `json:"model_name"`
	APIKey       *string   `json:"api_key"`
	CostPerToken *float64  `json:"cost_per_token"`
	IsDefault    bool      `json:"is_default"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResumeUpdate is a partial update of a Resume. Nil fields are left unchanged.
type ResumeUpdate struct {
	Name            *string   `json:"name,omitempty"`
	OriginalContent *string   `json:"original_content,omitempty"`
	FileType        *FileType `json:"file_type,omitempty"`
	IsMaster        *bool     `json:"is_master,omitempty"`
}

// JobUpdate is a partial update of a Job. Analysis fields are written through
// analysis.Service.Record so that match_score stays in sync with the report.
type JobUpdate struct {
	Title                 *string         `json:"title,omitempty"`
	TitleConfidence       *Confidence     `json:"title_confidence,omitempty"`
	Company               *string         `json:"company,omitempty"`
	CompanyConfidence     *Confidence     `json:"company_confidence,omitempty"`
	Description           *string         `json:"description,omitempty"`
	DescriptionConfidence *Confidence     `json:"description_confidence,omitempty"`
	Requirements          *string         `json:"requirements,omitempty"`
	Analyzed              *bool           `json:"analyzed,omitempty"`
	AnalysisResult        json.RawMessage `json:"analysis_result,omitempty"`
	MatchScore            *float64        `json:"match_score,omitempty"`
}

// ApplicationUpdate is a partial update of an Application. Status and
// StatusHistory must be set together. Unset fields keep their stored value,
// so a merge cannot clear interview_date or interview_notes back to null.
type ApplicationUpdate struct {
	ResumeVersionID *int64         `json:"resume_version_id,omitempty"`
	Status          *Status        `json:"status,omitempty"`
	StatusHistory   []StatusChange `json:"status_history,omitempty"`
	AppliedAt       *time.Time     `json:"applied_at,omitempty"`
	InterviewDate   *time.Time     `json:"interview_date,omitempty"`
	InterviewNotes  *string        `json:"interview_notes,omitempty"`
	Reminders       []Reminder     `json:"reminders,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
}

// ModelConfigUpdate is a partial update of a ModelConfig.
type ModelConfigUpdate struct {
	Provider     *string  `json:"provider,omitempty"`
	ModelName    *string  `json:"model_name,omitempty"`
	APIKey       *string  `json:"api_key,omitempty"`
	CostPerToken *float64 `json:"cost_per_token,omitempty"`
	IsDefault    *bool    `json:"is_default,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}
