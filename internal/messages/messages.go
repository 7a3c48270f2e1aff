// Package messages decodes extension messages into typed requests and routes
// them to a Handler.
package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gapgiraffe/internal/ingest"
	"gapgiraffe/internal/repository"
)

// Type names a message variant on the wire.
type Type string

const (
	TypeAnalyzeJob   Type = "ANALYZE_JOB"
	TypeJobExtracted Type = "JOB_EXTRACTED"
	TypeGetConfig    Type = "GET_CONFIG"
	TypeSaveConfig   Type = "SAVE_CONFIG"
	TypeTrackJob     Type = "TRACK_JOB"
	TypeUpdateStatus Type = "UPDATE_STATUS"
)

// ErrUnknownType is returned by Decode for a type no variant handles.
var ErrUnknownType = errors.New("unknown message type")

// Envelope is the wire form of a message.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the wire form of a reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler has one method per message variant. Adding a variant adds a method
// here, so every Handler must be extended before it compiles again.
type Handler interface {
	AnalyzeJob(ctx context.Context, req AnalyzeJob) (Response, error)
	JobExtracted(ctx context.Context, req JobExtracted) (Response, error)
	GetConfig(ctx context.Context, req GetConfig) (Response, error)
	SaveConfig(ctx context.Context, req SaveConfig) (Response, error)
	TrackJob(ctx context.Context, req TrackJob) (Response, error)
	UpdateStatus(ctx context.Context, req UpdateStatus) (Response, error)
}

// Request is a decoded message.
type Request interface {
	Type() Type
	Dispatch(ctx context.Context, h Handler) (Response, error)
}

// AnalyzeJob asks for a job to be scored against the master resume.
type AnalyzeJob struct {
	JobID int64 `json:"jobId"`
}

// JobExtracted carries a freshly scraped job.
type JobExtracted struct {
	Job ingest.JobData
}

// GetConfig asks for the model configurations.
type GetConfig struct{}

// SaveConfig updates a model configuration. A zero ID targets the default.
type SaveConfig struct {
	ID int64 `json:"id"`
	repository.ModelConfigUpdate
}

// TrackJob starts tracking an application for a job.
type TrackJob struct {
	JobID int64  `json:"jobId"`
	Note  string `json:"note"`
}

// UpdateStatus moves an application to a new status.
type UpdateStatus struct {
	ApplicationID int64             `json:"applicationId"`
	Status        repository.Status `json:"status"`
	Note          string            `json:"note"`
}

func (AnalyzeJob) Type() Type   { return TypeAnalyzeJob }
func (JobExtracted) Type() Type { return TypeJobExtracted }
func (GetConfig) Type() Type    { return TypeGetConfig }
func (SaveConfig) Type() Type   { return TypeSaveConfig }
func (TrackJob) Type() Type     { return TypeTrackJob }
func (UpdateStatus) Type() Type { return TypeUpdateStatus }

func (r AnalyzeJob) Dispatch(ctx context.Context, h Handler) (Response, error) {
	return h.AnalyzeJob(ctx, r)
}

func (r JobExtracted) Dispatch(ctx context.Context, h Handler) (Response, error) {
	return h.JobExtracted(ctx, r)
}

func (r GetConfig) Dispatch(ctx context.Context, h Handler) (Response, error) {
	return h.GetConfig(ctx, r)
}

func (r SaveConfig) Dispatch(ctx context.Context, h Handler) (Response, error) {
	return h.SaveConfig(ctx, r)
}

func (r TrackJob) Dispatch(ctx context.Context, h Handler) (Response, error) {
	return h.TrackJob(ctx, r)
}

func (r UpdateStatus) Dispatch(ctx context.Context, h Handler) (Response, error) {
	return h.UpdateStatus(ctx, r)
}

// Decode parses an envelope into its Request variant.
func Decode(raw []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %v", repository.ErrValidation, err)
	}
	return env.Request()
}

// Request decodes the envelope's data into its variant.
func (e Envelope) Request() (Request, error) {
	switch e.Type {
	case TypeAnalyzeJob:
		var req AnalyzeJob
		if err := decodeData(e.Data, &req); err != nil {
			return nil, err
		}
		if req.JobID <= 0 {
			return nil, fmt.Errorf("%w: jobId is required", repository.ErrValidation)
		}
		return req, nil
	case TypeJobExtracted:
		data, err := ingest.Decode(e.Data)
		if err != nil {
			return nil, err
		}
		return JobExtracted{Job: *data}, nil
	case TypeGetConfig:
		return GetConfig{}, nil
	case TypeSaveConfig:
		var req SaveConfig
		if err := decodeData(e.Data, &req); err != nil {
			return nil, err
		}
		return req, nil
	case TypeTrackJob:
		var req TrackJob
		if err := decodeData(e.Data, &req); err != nil {
			return nil, err
		}
		if req.JobID <= 0 {
			return nil, fmt.Errorf("%w: jobId is required", repository.ErrValidation)
		}
		return req, nil
	case TypeUpdateStatus:
		var req UpdateStatus
		if err := decodeData(e.Data, &req); err != nil {
			return nil, err
		}
		if req.ApplicationID <= 0 {
			return nil, fmt.Errorf("%w: applicationId is required", repository.ErrValidation)
		}
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", repository.ErrValidation, req.Status)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed message data: %v", repository.ErrValidation, err)
	}
	return nil
}

// Handle decodes raw, dispatches it and folds any error into the reply.
func Handle(ctx context.Context, h Handler, raw []byte) (Response, error) {
	req, err := Decode(raw)
	if err != nil {
		return Failure(err), err
	}
	resp, err := req.Dispatch(ctx, h)
	if err != nil {
		return Failure(err), err
	}
	resp.Success = true
	return resp, nil
}

// Failure is the reply for err.
func Failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
