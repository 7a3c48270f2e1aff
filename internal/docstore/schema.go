package docstore

import (
	"fmt"
	"time"
)

// CurrentVersion is the newest schema version this package knows how to build.
const CurrentVersion = 2

// Collection names.
const (
	Resumes        = "resumes"
	ResumeVersions = "resume_versions"
	Jobs           = "jobs"
	Applications   = "applications"
	ModelConfigs   = "model_configs"
)

// IndexSpec describes a secondary index over one top-level document field.
type IndexSpec struct {
	Name   string
	Field  string
	Unique bool
}

// CollectionSpec describes a collection and its secondary indexes.
type CollectionSpec struct {
	Name    string
	Indexes []IndexSpec
}

// Index returns the named index.
func (c CollectionSpec) Index(name string) (IndexSpec, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSpec{}, false
}

var collections = []CollectionSpec{
	{
		Name:    Resumes,
		Indexes: []IndexSpec{{Name: "is_master", Field: "is_master"}},
	},
	{
		Name: ResumeVersions,
		Indexes: []IndexSpec{
			{Name: "resume_id", Field: "resume_id"},
			{Name: "job_id", Field: "job_id"},
		},
	},
	{
		Name: Jobs,
		Indexes: []IndexSpec{
			{Name: "url", Field: "url", Unique: true},
			{Name: "analyzed", Field: "analyzed"},
			{Name: "match_score", Field: "match_score"},
		},
	},
	{
		Name: Applications,
		Indexes: []IndexSpec{
			{Name: "job_id", Field: "job_id"},
			{Name: "status", Field: "status"},
		},
	},
	{
		Name:    ModelConfigs,
		Indexes: []IndexSpec{{Name: "is_default", Field: "is_default"}},
	},
}

// Collections returns the full schema in a stable order.
func Collections() []CollectionSpec {
	out := make([]CollectionSpec, len(collections))
	copy(out, collections)
	return out
}

func lookupCollection(name string) (CollectionSpec, error) {
	for _, c := range collections {
		if c.Name == name {
			return c, nil
		}
	}
	return CollectionSpec{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

func lookupIndex(collection, index string) (CollectionSpec, IndexSpec, error) {
	spec, err := lookupCollection(collection)
	if err != nil {
		return CollectionSpec{}, IndexSpec{}, err
	}
	idx, ok := spec.Index(index)
	if !ok {
		return CollectionSpec{}, IndexSpec{}, fmt.Errorf("%w: index %q on %q", ErrUnknownCollection, index, collection)
	}
	return spec, idx, nil
}

// defaultModelConfig is seeded into model_configs when a store is first created.
func defaultModelConfig(now time.Time) map[string]any {
	return map[string]any{
		"provider":       "gemini",
		"model_name":     "gemini-1.5-flash",
		"api_key":        nil,
		"cost_per_token": nil,
		"is_default":     true,
		"is_active":      true,
		"created_at":     now.UTC(),
	}
}
