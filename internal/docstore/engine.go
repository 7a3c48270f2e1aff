package docstore

import (
	"context"
	"fmt"
	"strings"

	"gapgiraffe/internal/config"
	"gapgiraffe/internal/database"
)

// IndexEntry is one encoded secondary-index key of a document.
type IndexEntry struct {
	Index  string
	Key    string
	Unique bool
}

// Row is a stored document body together with its key.
type Row struct {
	ID   int64
	Body []byte
}

// Engine is the raw persistence layer below Store. Engines serialize individual
// calls; callers needing several writes to land together use Batch.
type Engine interface {
	// Insert stores body under the next key of collection and returns that key.
	Insert(ctx context.Context, collection string, body []byte, entries []IndexEntry) (int64, error)
	// Get returns the body stored at id or ErrNotFound.
	Get(ctx context.Context, collection string, id int64) ([]byte, error)
	// All returns every row of collection by ascending id.
	All(ctx context.Context, collection string) ([]Row, error)
	// Put replaces the body and index entries at id, or returns ErrNotFound.
	Put(ctx context.Context, collection string, id int64, body []byte, entries []IndexEntry) error
	// Delete removes id. Deleting a missing id succeeds.
	Delete(ctx context.Context, collection string, id int64) error
	// Lookup returns the rows whose index key equals key, by ascending id.
	Lookup(ctx context.Context, collection, index, key string) ([]Row, error)
	// Range returns the rows with lower <= key <= upper, ordered by key then id.
	Range(ctx context.Context, collection, index, lower, upper string) ([]Row, error)
	// SchemaVersion returns the stored version, 0 for an empty store.
	SchemaVersion(ctx context.Context) (int, error)
	SetSchemaVersion(ctx context.Context, version int) error
	// Batch runs fn against a view of the engine whose writes are kept only if fn returns nil.
	Batch(ctx context.Context, fn func(Engine) error) error
	Close() error
}

// Opener opens an Engine. Store calls it from Initialize.
type Opener interface {
	Open(ctx context.Context) (Engine, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Engine, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context) (Engine, error) { return f(ctx) }

// NewOpener returns the Opener for the configured storage engine.
func NewOpener(cfg config.StorageConfig) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "sqlite", "postgres":
		return OpenerFunc(func(ctx context.Context) (Engine, error) {
			db, err := database.InitDatabase(cfg)
			if err != nil {
				return nil, err
			}
			if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
				if sqlDB, derr := db.DB(); derr == nil {
					_ = sqlDB.Close()
				}
				return nil, fmt.Errorf("migrate document tables: %w", err)
			}
			return newGormEngine(db, true), nil
		}), nil
	case "memory":
		return NewMemoryOpener(), nil
	default:
		return nil, fmt.Errorf("unsupported storage engine %q", cfg.Engine)
	}
}

func uniqueEntries(entries []IndexEntry) []IndexEntry {
	var out []IndexEntry
	for _, e := range entries {
		if e.Unique {
			out = append(out, e)
		}
	}
	return out
}
