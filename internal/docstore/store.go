package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gapgiraffe/internal/config"
	"gapgiraffe/internal/metrics"
)

// Store is a versioned document store with one collection per entity type.
// A Store is usable only between Initialize and Close.
type Store struct {
	opener Opener
	logger *slog.Logger
	strict bool
	now    func() time.Time

	mu      sync.RWMutex
	engine  Engine
	version int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration progress.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStrictMigrations makes a single failing row abort the whole upgrade.
func WithStrictMigrations(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithClock overrides time.Now for seeded timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an unopened Store.
func New(opener Opener, opts ...Option) *Store {
	s := &Store{
		opener: opener,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the configured engine and initializes a Store at the
// configured schema version.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Store, error) {
	opener, err := NewOpener(cfg)
	if err != nil {
		return nil, err
	}
	store := New(opener, WithLogger(logger), WithStrictMigrations(cfg.StrictMigrations))
	if err := store.Initialize(ctx, cfg.SchemaVersion); err != nil {
		return nil, err
	}
	return store, nil
}

// Initialize opens the store at targetVersion, creating or upgrading the
// schema as needed. Calling it on an open store does nothing.
func (s *Store) Initialize(ctx context.Context, targetVersion int) error {
	if targetVersion < 1 || targetVersion > CurrentVersion {
		return fmt.Errorf("%w: unsupported target version %d", ErrMigrationFailed, targetVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return nil
	}

	engine, err := s.opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	version, err := s.prepare(ctx, engine, targetVersion)
	if err != nil {
		_ = engine.Close()
		return err
	}

	s.engine = engine
	s.version = version
	return nil
}

func (s *Store) prepare(ctx context.Context, engine Engine, target int) (int, error) {
	current, err := engine.SchemaVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch {
	case current == 0:
		if err := s.create(ctx, engine, target); err != nil {
			return 0, err
		}
		s.logger.Info("document store created", slog.Int("schema_version", target))
	case current < target:
		if err := s.migrate(ctx, engine, current, target); err != nil {
			return 0, err
		}
	case current > target:
		return 0, fmt.Errorf("%w: stored schema version %d is newer than %d", ErrMigrationFailed, current, target)
	}
	return target, nil
}

func (s *Store) create(ctx context.Context, engine Engine, target int) error {
	return engine.Batch(ctx, func(tx Engine) error {
		spec, err := lookupCollection(ModelConfigs)
		if err != nil {
			return err
		}
		body, err := json.Marshal(defaultModelConfig(s.now()))
		if err != nil {
			return fmt.Errorf("encode default model config: %w", err)
		}
		entries, err := indexEntries(spec, body)
		if err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, ModelConfigs, body, entries); err != nil {
			return fmt.Errorf("seed default model config: %w", err)
		}
		return tx.SetSchemaVersion(ctx, target)
	})
}

// Close releases the engine. Later operations fail with ErrNotInitialized.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	s.version = 0
	return err
}

// Version returns the schema version of the open store, 0 when closed.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) current() (Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, ErrNotInitialized
	}
	return s.engine, nil
}

// Insert stores doc in collection and returns its generated key. Any "id"
// field in doc is ignored.
func (s *Store) Insert(ctx context.Context, collection string, doc any) (id int64, err error) {
	defer observe("insert", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return 0, err
	}
	spec, err := lookupCollection(collection)
	if err != nil {
		return 0, err
	}
	fields, err := toFields(doc)
	if err != nil {
		return 0, err
	}
	delete(fields, "id")
	body, entries, err := encodeDocument(spec, fields)
	if err != nil {
		return 0, err
	}
	return engine.Insert(ctx, collection, body, entries)
}

// Get returns the document at id with its "id" field set, or ErrNotFound.
func (s *Store) Get(ctx context.Context, collection string, id int64) (doc json.RawMessage, err error) {
	defer observe("get", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if _, err := lookupCollection(collection); err != nil {
		return nil, err
	}
	body, err := engine.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return withID(id, body)
}

// GetAll returns every document of collection by ascending key.
func (s *Store) GetAll(ctx context.Context, collection string) (docs []json.RawMessage, err error) {
	defer observe("get_all", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if _, err := lookupCollection(collection); err != nil {
		return nil, err
	}
	rows, err := engine.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	return withIDs(rows)
}

// Update merges the top-level fields of patch onto the document at id. Fields
// absent from patch keep their stored values. It returns ErrNotFound when no
// document exists at id.
func (s *Store) Update(ctx context.Context, collection string, id int64, patch any) (err error) {
	defer observe("update", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return err
	}
	spec, err := lookupCollection(collection)
	if err != nil {
		return err
	}
	changes, err := toFields(patch)
	if err != nil {
		return err
	}
	existing, err := engine.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	fields, err := decodeFields(existing)
	if err != nil {
		return err
	}
	for k, v := range changes {
		fields[k] = v
	}
	delete(fields, "id")
	body, entries, err := encodeDocument(spec, fields)
	if err != nil {
		return err
	}
	return engine.Put(ctx, collection, id, body, entries)
}

// Delete removes the document at id. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, collection string, id int64) (err error) {
	defer observe("delete", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return err
	}
	if _, err := lookupCollection(collection); err != nil {
		return err
	}
	return engine.Delete(ctx, collection, id)
}

// FindByIndex returns every document whose indexed field equals value,
// ordered by ascending key. A null value matches nothing.
func (s *Store) FindByIndex(ctx context.Context, collection, index string, value any) (docs []json.RawMessage, err error) {
	defer observe("find", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if _, _, err := lookupIndex(collection, index); err != nil {
		return nil, err
	}
	key, ok := EncodeKey(value)
	if !ok {
		return []json.RawMessage{}, nil
	}
	rows, err := engine.Lookup(ctx, collection, index, key)
	if err != nil {
		return nil, err
	}
	return withIDs(rows)
}

// FindFirst returns the matching document with the lowest key, or ErrNotFound.
func (s *Store) FindFirst(ctx context.Context, collection, index string, value any) (json.RawMessage, error) {
	docs, err := s.FindByIndex(ctx, collection, index, value)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindRange returns the documents whose indexed value lies in [lower, upper],
// ordered by value then key.
func (s *Store) FindRange(ctx context.Context, collection, index string, lower, upper any) (docs []json.RawMessage, err error) {
	defer observe("find_range", collection, time.Now(), &err)

	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if _, _, err := lookupIndex(collection, index); err != nil {
		return nil, err
	}
	lo, ok := EncodeKey(lower)
	if !ok {
		return nil, fmt.Errorf("docstore: lower bound %v is not indexable", lower)
	}
	hi, ok := EncodeKey(upper)
	if !ok {
		return nil, fmt.Errorf("docstore: upper bound %v is not indexable", upper)
	}
	rows, err := engine.Range(ctx, collection, index, lo, hi)
	if err != nil {
		return nil, err
	}
	return withIDs(rows)
}

func observe(op, collection string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(op, collection, time.Since(start), *err)
}

func toFields(doc any) (map[string]json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	switch v := doc.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		raw, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}
	return decodeFields(raw)
}

func encodeDocument(spec CollectionSpec, fields map[string]json.RawMessage) ([]byte, []IndexEntry, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("encode document: %w", err)
	}
	entries, err := indexEntries(spec, body)
	if err != nil {
		return nil, nil, err
	}
	return body, entries, nil
}

func withID(id int64, body []byte) (json.RawMessage, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	fields["id"] = json.RawMessage(fmt.Sprintf("%d", id))
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}

func withIDs(rows []Row) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		doc, err := withID(row.ID, row.Body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
