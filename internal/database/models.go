package database

import (
	"time"

	"gorm.io/datatypes"
)

// Document 保存某个集合中的一条 JSON 文档。
// 主键由集合名与集合内自增 ID 组成。
type Document struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         int64          `gorm:"primaryKey;autoIncrement:false"`
	Body       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IndexEntry 是二级索引中的一行：编码后的键指向文档 ID。
type IndexEntry struct {
	Collection string `gorm:"primaryKey;size:64;index:idx_lookup,priority:1"`
	IndexName  string `gorm:"primaryKey;size:64;index:idx_lookup,priority:2"`
	IndexKey   string `gorm:"primaryKey;index:idx_lookup,priority:3"`
	DocumentID int64  `gorm:"primaryKey;autoIncrement:false"`
	IsUnique   bool   `gorm:"not null;default:false"`
}

// Sequence 记录每个集合最近一次分配的 ID。
type Sequence struct {
	Collection string `gorm:"primaryKey;size:64"`
	LastID     int64  `gorm:"not null;default:0"`
}

// StoreMetadata 保存 schema_version 等存储级别的键值。
type StoreMetadata struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"size:255"`
}

// TableName 固定表名。
func (StoreMetadata) TableName() string { return "store_metadata" }
