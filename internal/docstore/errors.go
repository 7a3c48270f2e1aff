package docstore

import "errors"

var (
	// ErrStoreUnavailable is returned when the underlying engine cannot be opened.
	ErrStoreUnavailable = errors.New("docstore: store unavailable")
	// ErrNotInitialized is returned by every operation issued before Initialize or after Close.
	ErrNotInitialized = errors.New("docstore: not initialized")
	// ErrNotFound is returned when no document exists at the given key.
	ErrNotFound = errors.New("docstore: not found")
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("docstore: duplicate key")
	// ErrMigrationFailed is returned when a schema upgrade cannot complete.
	ErrMigrationFailed = errors.New("docstore: migration failed")
	// ErrUnknownCollection is returned for collection or index names outside the schema.
	ErrUnknownCollection = errors.New("docstore: unknown collection")
)
