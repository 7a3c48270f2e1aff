package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedVersion1 writes raw version 1 rows below a Store, as an older release would have.
func seedVersion1(t *testing.T, opener Opener, apps ...string) []int64 {
	t.Helper()
	ctx := context.Background()
	engine, err := opener.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, engine.SetSchemaVersion(ctx, 1))

	ids := make([]int64, 0, len(apps))
	for _, body := range apps {
		id, err := engine.Insert(ctx, Applications, []byte(body), nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, engine.Close())
	return ids
}

const (
	v1Application = `{"job_id":1,"status":"interviewing","notes":"","updated_at":"2024-02-01T09:00:00Z","created_at":"2024-01-20T09:00:00Z"}`
	v1NoStatus    = `{"job_id":2,"notes":"broken","updated_at":"2024-02-02T09:00:00Z"}`
)

func TestMigrateBackfillsApplicationHistory(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			opener := tc.opener(t)
			ids := seedVersion1(t, opener, v1Application)

			store := New(opener)
			require.NoError(t, store.Initialize(ctx, 2))
			t.Cleanup(func() { _ = store.Close() })
			assert.Equal(t, 2, store.Version())

			app := decode(t, mustGet(t, store, Applications, ids[0]))
			assert.Equal(t, []any{map[string]any{
				"status":    "interviewing",
				"timestamp": "2024-02-01T09:00:00Z",
			}}, app["status_history"])
			assert.Equal(t, []any{}, app["reminders"])
			assert.Contains(t, app, "interview_date")
			assert.Nil(t, app["interview_notes"])

			docs, err := store.FindByIndex(ctx, Applications, "status", "interviewing")
			require.NoError(t, err)
			assert.Len(t, docs, 1)
		})
	}
}

func TestMigrateKeepsExistingHistory(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			opener := tc.opener(t)
			ids := seedVersion1(t, opener,
				`{"job_id":1,"status":"offer","updated_at":"2024-03-01T00:00:00Z","status_history":[{"status":"applied","timestamp":"2024-01-01T00:00:00Z"}]}`,
			)

			store := New(opener)
			require.NoError(t, store.Initialize(ctx, 2))
			t.Cleanup(func() { _ = store.Close() })

			history := decode(t, mustGet(t, store, Applications, ids[0]))["status_history"].([]any)
			require.Len(t, history, 1)
			assert.Equal(t, "applied", history[0].(map[string]any)["status"])
		})
	}
}

func TestMigrateBestEffortSkipsBadRows(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			opener := tc.opener(t)
			ids := seedVersion1(t, opener, v1Application, v1NoStatus)

			store := New(opener)
			require.NoError(t, store.Initialize(ctx, 2))
			t.Cleanup(func() { _ = store.Close() })

			good := decode(t, mustGet(t, store, Applications, ids[0]))
			assert.Contains(t, good, "status_history")

			bad := decode(t, mustGet(t, store, Applications, ids[1]))
			assert.NotContains(t, bad, "status_history")
			assert.Equal(t, "broken", bad["notes"])
		})
	}
}

func TestMigrateStrictAbortsOnBadRow(t *testing.T) {
	for _, tc := range engineCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			opener := tc.opener(t)
			ids := seedVersion1(t, opener, v1Application, v1NoStatus)

			store := New(opener, WithStrictMigrations(true))
			err := store.Initialize(ctx, 2)
			require.ErrorIs(t, err, ErrMigrationFailed)

			_, err = store.Get(ctx, Applications, ids[0])
			assert.ErrorIs(t, err, ErrNotInitialized)

			engine, err := opener.Open(ctx)
			require.NoError(t, err)
			t.Cleanup(func() { _ = engine.Close() })
			version, err := engine.SchemaVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, version)

			body, err := engine.Get(ctx, Applications, ids[0])
			require.NoError(t, err)
			var fields map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(body, &fields))
			assert.NotContains(t, fields, "status_history")
		})
	}
}

func TestBackfillApplicationHistoryRequiresUpdatedAt(t *testing.T) {
	_, err := backfillApplicationHistory(map[string]json.RawMessage{
		"status": json.RawMessage(`"applied"`),
	})
	assert.ErrorIs(t, err, errRowMigration)
}
