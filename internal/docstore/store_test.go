package docstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapgiraffe/internal/config"
	"gapgiraffe/internal/database"
)

type engineCase struct {
	name   string
	opener func(t *testing.T) Opener
}

func engineCases() []engineCase {
	return []engineCase{
		{
			name:   "memory",
			opener: func(t *testing.T) Opener { return NewMemoryOpener() },
		},
		{
			name: "sqlite",
			opener: func(t *testing.T) Opener {
				opener, err := NewOpener(config.StorageConfig{
					Engine: "sqlite",
					Path:   filepath.Join(t.TempDir(), "store.db"),
				})
				require.NoError(t, err)
				return opener
			},
		},
	}
}

func openStore(t *testing.T, opener Opener, opts ...Option) *Store {
	t.Helper()
	store := New(opener, opts...)
	require.NoError(t, store.Initialize(context.Background(), CurrentVersion))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestStoreCRUD(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, tc.opener(t))

			id, err := store.Insert(ctx, Jobs, map[string]any{
				"id":          99,
				"url":         "https://x.com/job/1",
				"title":       "Engineer",
				"description": "Build things",
				"analyzed":    false,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), id)

			raw, err := store.Get(ctx, Jobs, id)
			require.NoError(t, err)
			doc := decode(t, raw)
			assert.Equal(t, float64(1), doc["id"])
			assert.Equal(t, "Engineer", doc["title"])

			require.NoError(t, store.Update(ctx, Jobs, id, map[string]any{"analyzed": true, "match_score": 80}))
			doc = decode(t, mustGet(t, store, Jobs, id))
			assert.Equal(t, "Engineer", doc["title"])
			assert.Equal(t, "Build things", doc["description"])
			assert.Equal(t, true, doc["analyzed"])
			assert.Equal(t, float64(80), doc["match_score"])

			err = store.Update(ctx, Jobs, 42, map[string]any{"analyzed": true})
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.Get(ctx, Jobs, 42)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Delete(ctx, Jobs, id))
			require.NoError(t, store.Delete(ctx, Jobs, id))
			_, err = store.Get(ctx, Jobs, id)
			assert.ErrorIs(t, err, ErrNotFound)

			next, err := store.Insert(ctx, Jobs, map[string]any{"url": "https://x.com/job/2"})
			require.NoError(t, err)
			assert.Equal(t, int64(2), next, "keys are never reused")
		})
	}
}

func mustGet(t *testing.T, store *Store, collection string, id int64) json.RawMessage {
	t.Helper()
	raw, err := store.Get(context.Background(), collection, id)
	require.NoError(t, err)
	return raw
}

func TestStoreUniqueIndex(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, tc.opener(t))

			first, err := store.Insert(ctx, Jobs, map[string]any{"url": "https://x.com/job/1", "title": "Engineer"})
			require.NoError(t, err)

			_, err = store.Insert(ctx, Jobs, map[string]any{"url": "https://x.com/job/1", "title": "Engineer"})
			require.ErrorIs(t, err, ErrDuplicateKey)

			all, err := store.GetAll(ctx, Jobs)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, float64(first), decode(t, all[0])["id"])

			second, err := store.Insert(ctx, Jobs, map[string]any{"url": "https://x.com/job/2"})
			require.NoError(t, err)
			err = store.Update(ctx, Jobs, second, map[string]any{"url": "https://x.com/job/1"})
			assert.ErrorIs(t, err, ErrDuplicateKey)

			require.NoError(t, store.Update(ctx, Jobs, first, map[string]any{"title": "Senior Engineer"}))
		})
	}
}

func TestStoreIndexes(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, tc.opener(t))

			scores := []any{75, 9, 100, nil, 9.5, 40}
			for i, score := range scores {
				_, err := store.Insert(ctx, Jobs, map[string]any{
					"url":         "https://x.com/job/" + string(rune('a'+i)),
					"analyzed":    score != nil,
					"match_score": score,
				})
				require.NoError(t, err)
			}

			analyzed, err := store.FindByIndex(ctx, Jobs, "analyzed", true)
			require.NoError(t, err)
			assert.Len(t, analyzed, 5)

			pending, err := store.FindByIndex(ctx, Jobs, "analyzed", false)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, float64(4), decode(t, pending[0])["id"])

			ranged, err := store.FindRange(ctx, Jobs, "match_score", 9, 75)
			require.NoError(t, err)
			var got []float64
			for _, raw := range ranged {
				got = append(got, decode(t, raw)["match_score"].(float64))
			}
			assert.Equal(t, []float64{9, 9.5, 40, 75}, got)

			nulls, err := store.FindByIndex(ctx, Jobs, "match_score", nil)
			require.NoError(t, err)
			assert.Empty(t, nulls)

			_, err = store.FindFirst(ctx, Jobs, "match_score", 12)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.FindByIndex(ctx, Jobs, "title", "x")
			assert.ErrorIs(t, err, ErrUnknownCollection)
		})
	}
}

func TestStoreFindFirstReturnsLowestKey(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, NewMemoryOpener())

	for _, name := range []string{"a", "b", "c"} {
		_, err := store.Insert(ctx, Resumes, map[string]any{"name": name, "is_master": name != "a"})
		require.NoError(t, err)
	}

	raw, err := store.FindFirst(ctx, Resumes, "is_master", true)
	require.NoError(t, err)
	assert.Equal(t, "b", decode(t, raw)["name"])
}

func TestStoreSeedsDefaultModelConfig(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, tc.opener(t))

			raw, err := store.FindFirst(ctx, ModelConfigs, "is_default", true)
			require.NoError(t, err)
			doc := decode(t, raw)
			assert.Equal(t, "gemini", doc["provider"])
			assert.Equal(t, "gemini-1.5-flash", doc["model_name"])
			assert.Nil(t, doc["api_key"])
			assert.Equal(t, true, doc["is_active"])
			assert.Equal(t, CurrentVersion, store.Version())
		})
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	opener := NewMemoryOpener()
	store := New(opener)

	_, err := store.GetAll(ctx, Jobs)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, store.Initialize(ctx, CurrentVersion))
	require.NoError(t, store.Initialize(ctx, CurrentVersion))
	_, err = store.Insert(ctx, Jobs, map[string]any{"url": "https://x.com/job/1"})
	require.NoError(t, err)

	require.NoError(t, store.Close())
	_, err = store.Insert(ctx, Jobs, map[string]any{"url": "https://x.com/job/2"})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, store.Initialize(ctx, CurrentVersion))
	all, err := store.GetAll(ctx, Jobs)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	configs, err := store.GetAll(ctx, ModelConfigs)
	require.NoError(t, err)
	assert.Len(t, configs, 1, "seed runs only for a fresh store")
}

func TestStoreUnavailable(t *testing.T) {
	opener := OpenerFunc(func(context.Context) (Engine, error) {
		return nil, assert.AnError
	})
	err := New(opener).Initialize(context.Background(), CurrentVersion)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestStoreRejectsDowngrade(t *testing.T) {
	ctx := context.Background()
	opener := NewMemoryOpener()
	store := New(opener)
	require.NoError(t, store.Initialize(ctx, 2))
	require.NoError(t, store.Close())

	err := store.Initialize(ctx, 1)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	_, err = store.GetAll(ctx, Jobs)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStoreReadsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, NewMemoryOpener())

	id, err := store.Insert(ctx, Resumes, map[string]any{"name": "cv"})
	require.NoError(t, err)

	raw := mustGet(t, store, Resumes, id)
	raw[2] = 'X'
	assert.Equal(t, "cv", decode(t, mustGet(t, store, Resumes, id))["name"])
}

func TestStoreSeedUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := openStore(t, NewMemoryOpener(), WithClock(func() time.Time { return fixed }))

	raw, err := store.FindFirst(context.Background(), ModelConfigs, "is_default", true)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", decode(t, raw)["created_at"])
}

func TestGormEngineLeavesCallerDBOpen(t *testing.T) {
	ctx := context.Background()
	db, err := database.InitDatabase(config.StorageConfig{
		Engine: "sqlite",
		Path:   filepath.Join(t.TempDir(), "shared.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	opener := OpenerFunc(func(context.Context) (Engine, error) { return NewGormEngine(db), nil })
	store := New(opener)
	require.NoError(t, store.Initialize(ctx, CurrentVersion))
	_, err = store.Insert(ctx, Resumes, map[string]any{"name": "cv"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, sqlDB.PingContext(ctx), "caller-owned connection stays open")

	require.NoError(t, store.Initialize(ctx, CurrentVersion))
	t.Cleanup(func() { _ = store.Close() })
	docs, err := store.GetAll(ctx, Resumes)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCollectionsSchema(t *testing.T) {
	specs := Collections()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	assert.Equal(t, []string{Resumes, ResumeVersions, Jobs, Applications, ModelConfigs}, names)

	jobs := specs[2]
	url, ok := jobs.Index("url")
	require.True(t, ok)
	assert.True(t, url.Unique)
	_, ok = jobs.Index("company")
	assert.False(t, ok)

	specs[0].Name = "changed"
	assert.Equal(t, Resumes, Collections()[0].Name, "callers get a copy")
}
