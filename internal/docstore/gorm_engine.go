package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gapgiraffe/internal/database"
)

const schemaVersionKey = "schema_version"

// gormEngine stores documents as JSON rows with an index_entries side table.
type gormEngine struct {
	db     *gorm.DB
	ownsDB bool
}

// NewGormEngine wraps an already migrated database. The caller keeps ownership
// of db, so Close leaves the connection open.
func NewGormEngine(db *gorm.DB) Engine {
	return newGormEngine(db, false)
}

func newGormEngine(db *gorm.DB, ownsDB bool) *gormEngine {
	return &gormEngine{db: db, ownsDB: ownsDB}
}

func (e *gormEngine) Insert(ctx context.Context, collection string, body []byte, entries []IndexEntry) (int64, error) {
	var id int64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUniqueGorm(tx, collection, 0, entries); err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&database.Sequence{Collection: collection}).Error; err != nil {
			return fmt.Errorf("init sequence: %w", err)
		}
		if err := tx.Model(&database.Sequence{}).
			Where("collection = ?", collection).
			Update("last_id", gorm.Expr("last_id + 1")).Error; err != nil {
			return fmt.Errorf("advance sequence: %w", err)
		}
		var seq database.Sequence
		if err := tx.Where("collection = ?", collection).First(&seq).Error; err != nil {
			return fmt.Errorf("read sequence: %w", err)
		}
		id = seq.LastID

		now := time.Now().UTC()
		doc := database.Document{
			Collection: collection,
			ID:         id,
			Body:       datatypes.JSON(body),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return translateGormError(err)
		}
		return writeEntries(tx, collection, id, entries)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (e *gormEngine) Get(ctx context.Context, collection string, id int64) ([]byte, error) {
	var doc database.Document
	err := e.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&doc).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return []byte(doc.Body), nil
}

func (e *gormEngine) All(ctx context.Context, collection string) ([]Row, error) {
	var docs []database.Document
	err := e.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return toRows(docs), nil
}

func (e *gormEngine) Put(ctx context.Context, collection string, id int64, body []byte, entries []IndexEntry) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Document{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{
				"body":       datatypes.JSON(body),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return translateGormError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := checkUniqueGorm(tx, collection, id, entries); err != nil {
			return err
		}
		if err := tx.Where("collection = ? AND document_id = ?", collection, id).
			Delete(&database.IndexEntry{}).Error; err != nil {
			return fmt.Errorf("clear index entries: %w", err)
		}
		return writeEntries(tx, collection, id, entries)
	})
}

func (e *gormEngine) Delete(ctx context.Context, collection string, id int64) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ? AND document_id = ?", collection, id).
			Delete(&database.IndexEntry{}).Error; err != nil {
			return fmt.Errorf("delete index entries: %w", err)
		}
		if err := tx.Where("collection = ? AND id = ?", collection, id).
			Delete(&database.Document{}).Error; err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

func (e *gormEngine) Lookup(ctx context.Context, collection, index, key string) ([]Row, error) {
	var docs []database.Document
	err := e.joinedEntries(ctx, collection, index).
		Where("index_entries.index_key = ?", key).
		Order("documents.id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return toRows(docs), nil
}

func (e *gormEngine) Range(ctx context.Context, collection, index, lower, upper string) ([]Row, error) {
	var docs []database.Document
	err := e.joinedEntries(ctx, collection, index).
		Where("index_entries.index_key >= ? AND index_entries.index_key <= ?", lower, upper).
		Order("index_entries.index_key ASC").
		Order("documents.id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return toRows(docs), nil
}

func (e *gormEngine) joinedEntries(ctx context.Context, collection, index string) *gorm.DB {
	return e.db.WithContext(ctx).
		Model(&database.Document{}).
		Select("documents.*").
		Joins("JOIN index_entries ON index_entries.collection = documents.collection AND index_entries.document_id = documents.id").
		Where("index_entries.collection = ? AND index_entries.index_name = ?", collection, index)
}

func (e *gormEngine) SchemaVersion(ctx context.Context) (int, error) {
	var meta database.StoreMetadata
	err := e.db.WithContext(ctx).Where("key = ?", schemaVersionKey).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(meta.Value)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", meta.Value, err)
	}
	return version, nil
}

func (e *gormEngine) SetSchemaVersion(ctx context.Context, version int) error {
	meta := database.StoreMetadata{Key: schemaVersionKey, Value: strconv.Itoa(version)}
	err := e.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&meta).Error
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func (e *gormEngine) Batch(ctx context.Context, fn func(Engine) error) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormEngine{db: tx})
	})
}

func (e *gormEngine) Close() error {
	if !e.ownsDB {
		return nil
	}
	sqlDB, err := e.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap db: %w", err)
	}
	return sqlDB.Close()
}

func checkUniqueGorm(tx *gorm.DB, collection string, self int64, entries []IndexEntry) error {
	for _, entry := range uniqueEntries(entries) {
		var count int64
		err := tx.Model(&database.IndexEntry{}).
			Where("collection = ? AND index_name = ? AND index_key = ? AND document_id <> ?",
				collection, entry.Index, entry.Key, self).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("check unique index %s.%s: %w", collection, entry.Index, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateKey, collection, entry.Index)
		}
	}
	return nil
}

func writeEntries(tx *gorm.DB, collection string, id int64, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]database.IndexEntry, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, database.IndexEntry{
			Collection: collection,
			IndexName:  entry.Index,
			IndexKey:   entry.Key,
			DocumentID: id,
			IsUnique:   entry.Unique,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return translateGormError(err)
	}
	return nil
}

func translateGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return err
	}
}

func toRows(docs []database.Document) []Row {
	rows := make([]Row, len(docs))
	for i, doc := range docs {
		rows[i] = Row{ID: doc.ID, Body: []byte(doc.Body)}
	}
	return rows
}
