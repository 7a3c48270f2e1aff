package analysis

import "context"

// Request asks the orchestrator to score a resume against a job.
type Request struct {
	JobTitle       string  `json:"jobTitle"`
	JobCompany     string  `json:"jobCompany"`
	JobDescription string  `json:"jobDescription"`
	ResumeContent  *string `json:"resumeContent,omitempty"`
}

// Response is the orchestrator's envelope. Data is set only when Success is true.
type Response struct {
	Success bool    `json:"success"`
	Data    *Result `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Result is the match report. Only MatchScore and KeyRequirements are read
// by this service; the whole report is stored on the job as-is.
type Result struct {
	MatchScore      float64   `json:"matchScore"`
	CertaintyScore  float64   `json:"certaintyScore"`
	KeyRequirements []string  `json:"keyRequirements"`
	MissingSkills   []string  `json:"missingSkills"`
	Strengths       []string  `json:"strengths"`
	Analysis        Breakdown `json:"analysis"`
	Suggestions     []string  `json:"suggestions"`
}

// Breakdown is the per-dimension commentary of a Result.
type Breakdown struct {
	TechnicalFit  string `json:"technicalFit"`
	ExperienceFit string `json:"experienceFit"`
	CulturalFit   string `json:"culturalFit"`
}

// Analyzer calls the external analysis orchestrator.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Response, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req Request) (*Response, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
