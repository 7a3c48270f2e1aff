package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gapgiraffe/internal/docstore"
)

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by update operations when the key does not exist.
	ErrNotFound = docstore.ErrNotFound
	// ErrDuplicateKey is returned when a job URL is already stored.
	ErrDuplicateKey = docstore.ErrDuplicateKey
)

// DocumentStore is the subset of docstore.Store the repository needs.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, doc any) (int64, error)
	Get(ctx context.Context, collection string, id int64) (json.RawMessage, error)
	GetAll(ctx context.Context, collection string) ([]json.RawMessage, error)
	Update(ctx context.Context, collection string, id int64, patch any) error
	Delete(ctx context.Context, collection string, id int64) error
	FindByIndex(ctx context.Context, collection, index string, value any) ([]json.RawMessage, error)
	FindFirst(ctx context.Context, collection, index string, value any) (json.RawMessage, error)
	FindRange(ctx context.Context, collection, index string, lower, upper any) ([]json.RawMessage, error)
}

var _ DocumentStore = (*docstore.Store)(nil)

// Repository is the typed CRUD surface over the document store.
//
// Get operations return (nil, nil) when the entity does not exist. Update
// operations merge only the non-nil fields of their patch and fail with
// ErrNotFound for a missing key.
type Repository struct {
	store DocumentStore
	now   func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides time.Now for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Repository over store.
func New(store DocumentStore, opts ...Option) *Repository {
	r := &Repository{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the repository clock in UTC.
func (r *Repository) Now() time.Time {
	return r.now().UTC()
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func getOne[T any](ctx context.Context, store DocumentStore, collection string, id int64) (*T, error) {
	raw, err := store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", collection, id, err)
	}
	return decodeOne[T](raw)
}

func findFirst[T any](ctx context.Context, store DocumentStore, collection, index string, value any) (*T, error) {
	raw, err := store.FindFirst(ctx, collection, index, value)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", collection, index, err)
	}
	return decodeOne[T](raw)
}

func decodeOne[T any](raw json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &out, nil
}

func decodeAll[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		item, err := decodeOne[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

// mergePatch turns a typed patch into top-level fields and adds extra.
func mergePatch(patch any, extra map[string]any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	for k, v := range extra {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		fields[k] = encoded
	}
	return fields, nil
}
