// Package ingest turns extraction payloads into stored jobs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gapgiraffe/internal/repository"
)

// Field is one extracted value and how sure the extractor is about it.
type Field struct {
	Value      string                `json:"value"`
	Confidence repository.Confidence `json:"confidence"`
}

// JobData is what the extractor reports for a job page.
type JobData struct {
	URL         string    `json:"url"`
	ExtractedAt time.Time `json:"extractedAt"`
	Title       Field     `json:"title"`
	Company     Field     `json:"company"`
	Description Field     `json:"description"`
}

// Job converts the payload to a job row.
func (d JobData) Job() repository.Job {
	return repository.Job{
		URL:                   strings.TrimSpace(d.URL),
		Title:                 strings.TrimSpace(d.Title.Value),
		TitleConfidence:       d.Title.Confidence,
		Company:               strings.TrimSpace(d.Company.Value),
		CompanyConfidence:     d.Company.Confidence,
		Description:           d.Description.Value,
		DescriptionConfidence: d.Description.Confidence,
		ScrapedAt:             d.ExtractedAt,
	}
}

// JobStore is the part of the repository ingestion writes to.
type JobStore interface {
	GetJobByURL(ctx context.Context, url string) (*repository.Job, error)
	CreateJob(ctx context.Context, job repository.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*repository.Job, error)
}

var _ JobStore = (*repository.Repository)(nil)

// Ingester stores extracted jobs, one per URL.
type Ingester struct {
	store  JobStore
	logger *slog.Logger
}

// New returns an Ingester writing to store.
func New(store JobStore, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, logger: logger}
}

// Ingest stores data as a job. A job already stored for the same URL is
// returned unchanged with created set to false.
func (i *Ingester) Ingest(ctx context.Context, data JobData) (job *repository.Job, created bool, err error) {
	row := data.Job()
	if existing, err := i.store.GetJobByURL(ctx, row.URL); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	id, err := i.store.CreateJob(ctx, row)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// stored by a concurrent request between the lookup and the insert
		existing, lookupErr := i.store.GetJobByURL(ctx, row.URL)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("ingest job: %w", err)
	}

	job, err = i.store.GetJob(ctx, id)
	if err != nil {
		return nil, false, err
	}
	i.logger.Info("job ingested",
		slog.Int64("job_id", id),
		slog.String("url", row.URL),
		slog.String("title_confidence", string(row.TitleConfidence)),
	)
	return job, true, nil
}

// IngestRaw validates and decodes raw before ingesting it.
func (i *Ingester) IngestRaw(ctx context.Context, raw []byte) (*repository.Job, bool, error) {
	data, err := Decode(raw)
	if err != nil {
		return nil, false, err
	}
	return i.Ingest(ctx, *data)
}
