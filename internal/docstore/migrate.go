package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// migrationStep upgrades every row of one collection from version N to N+1.
// apply is a pure function over a single document's fields.
type migrationStep struct {
	collection string
	apply      func(fields map[string]json.RawMessage) (map[string]json.RawMessage, error)
}

// migrations is keyed by the version a step upgrades from.
var migrations = map[int]migrationStep{
	1: {collection: Applications, apply: backfillApplicationHistory},
}

var errRowMigration = errors.New("row cannot be migrated")

// backfillApplicationHistory gives a version 1 application a one-entry status
// history derived from its status and updated_at, and the interview and
// reminder fields introduced in version 2.
func backfillApplicationHistory(fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields)+4)
	for k, v := range fields {
		out[k] = v
	}

	if isAbsent(out["status_history"]) {
		var status string
		if err := json.Unmarshal(out["status"], &status); err != nil || status == "" {
			return nil, fmt.Errorf("%w: application has no status", errRowMigration)
		}
		updatedAt := out["updated_at"]
		if isAbsent(updatedAt) {
			return nil, fmt.Errorf("%w: application has no updated_at", errRowMigration)
		}
		history, err := json.Marshal([]map[string]json.RawMessage{{
			"status":    out["status"],
			"timestamp": updatedAt,
		}})
		if err != nil {
			return nil, err
		}
		out["status_history"] = history
	}
	if _, ok := out["interview_date"]; !ok {
		out["interview_date"] = json.RawMessage("null")
	}
	if _, ok := out["interview_notes"]; !ok {
		out["interview_notes"] = json.RawMessage("null")
	}
	if isAbsent(out["reminders"]) {
		out["reminders"] = json.RawMessage("[]")
	}
	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// migrate upgrades engine from one version to another and rebuilds every
// index. In best-effort mode a failing row is logged and left as it was; in
// strict mode the whole upgrade runs in one batch and any failure aborts it.
func (s *Store) migrate(ctx context.Context, engine Engine, from, to int) error {
	log := s.logger.With(slog.Int("from_version", from), slog.Int("to_version", to))
	log.Info("migrating document store", slog.Bool("strict", s.strict))

	run := func(e Engine) error {
		for v := from; v < to; v++ {
			step, ok := migrations[v]
			if !ok {
				return fmt.Errorf("%w: no migration from version %d", ErrMigrationFailed, v)
			}
			if err := s.applyStep(ctx, e, step, v, log); err != nil {
				return err
			}
		}
		if err := s.reindex(ctx, e, log); err != nil {
			return err
		}
		if err := e.SetSchemaVersion(ctx, to); err != nil {
			return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
		return nil
	}

	var err error
	if s.strict {
		err = engine.Batch(ctx, run)
	} else {
		err = run(engine)
	}
	if err != nil {
		log.Error("document store migration failed", slog.Any("error", err))
		if !errors.Is(err, ErrMigrationFailed) {
			err = fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
		return err
	}
	log.Info("document store migrated")
	return nil
}

func (s *Store) applyStep(ctx context.Context, e Engine, step migrationStep, from int, log *slog.Logger) error {
	spec, err := lookupCollection(step.collection)
	if err != nil {
		return err
	}
	rows, err := e.All(ctx, step.collection)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrMigrationFailed, step.collection, err)
	}

	migrated, skipped := 0, 0
	for _, row := range rows {
		rowErr := func() error {
			fields, err := decodeFields(row.Body)
			if err != nil {
				return err
			}
			next, err := step.apply(fields)
			if err != nil {
				return err
			}
			body, entries, err := encodeDocument(spec, next)
			if err != nil {
				return err
			}
			return e.Put(ctx, step.collection, row.ID, body, entries)
		}()
		if rowErr == nil {
			migrated++
			continue
		}
		if s.strict {
			return fmt.Errorf("%w: %s %d: %v", ErrMigrationFailed, step.collection, row.ID, rowErr)
		}
		skipped++
		log.Warn("skipping row during migration",
			slog.String("collection", step.collection),
			slog.Int64("id", row.ID),
			slog.Int("step_from", from),
			slog.Any("error", rowErr),
		)
	}

	log.Info("migration step applied",
		slog.String("collection", step.collection),
		slog.Int("step_from", from),
		slog.Int("migrated", migrated),
		slog.Int("skipped", skipped),
	)
	return nil
}

// reindex recomputes the index entries of every document so that indexes
// introduced by a migration cover existing rows.
func (s *Store) reindex(ctx context.Context, e Engine, log *slog.Logger) error {
	for _, spec := range collections {
		rows, err := e.All(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrMigrationFailed, spec.Name, err)
		}
		for _, row := range rows {
			entries, err := indexEntries(spec, row.Body)
			if err == nil {
				err = e.Put(ctx, spec.Name, row.ID, row.Body, entries)
			}
			if err == nil {
				continue
			}
			if s.strict {
				return fmt.Errorf("%w: reindex %s %d: %v", ErrMigrationFailed, spec.Name, row.ID, err)
			}
			log.Warn("skipping row during reindex",
				slog.String("collection", spec.Name),
				slog.Int64("id", row.ID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}
