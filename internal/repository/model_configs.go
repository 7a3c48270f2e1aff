package repository

import (
	"context"
	"fmt"
	"strings"

	"gapgiraffe/internal/docstore"
)

// GetDefaultModel returns the default model config with the lowest key, or nil.
func (r *Repository) GetDefaultModel(ctx context.Context) (*ModelConfig, error) {
	return findFirst[ModelConfig](ctx, r.store, docstore.ModelConfigs, "is_default", true)
}

// GetModelConfig returns the config at id or nil.
func (r *Repository) GetModelConfig(ctx context.Context, id int64) (*ModelConfig, error) {
	return getOne[ModelConfig](ctx, r.store, docstore.ModelConfigs, id)
}

// GetAllModelConfigs returns every model config by ascending key.
func (r *Repository) GetAllModelConfigs(ctx context.Context) ([]ModelConfig, error) {
	raws, err := r.store.GetAll(ctx, docstore.ModelConfigs)
	if err != nil {
		return nil, fmt.Errorf("list model configs: %w", err)
	}
	return decodeAll[ModelConfig](raws)
}

// CreateModelConfig stores a new model config and returns its key.
func (r *Repository) CreateModelConfig(ctx context.Context, cfg ModelConfig) (int64, error) {
	if strings.TrimSpace(cfg.Provider) == "" {
		return 0, validationError("provider is required")
	}
	if strings.TrimSpace(cfg.ModelName) == "" {
		return 0, validationError("model name is required")
	}
	cfg.CreatedAt = r.Now()

	id, err := r.store.Insert(ctx, docstore.ModelConfigs, cfg)
	if err != nil {
		return 0, fmt.Errorf("create model config: %w", err)
	}
	return id, nil
}

// UpdateModelConfig merges update onto the config at id.
func (r *Repository) UpdateModelConfig(ctx context.Context, id int64, update ModelConfigUpdate) error {
	if update.Provider != nil && strings.TrimSpace(*update.Provider) == "" {
		return validationError("provider must not be empty")
	}
	if update.ModelName != nil && strings.TrimSpace(*update.ModelName) == "" {
		return validationError("model name must not be empty")
	}
	fields, err := mergePatch(update, nil)
	if err != nil {
		return err
	}
	if err := r.store.Update(ctx, docstore.ModelConfigs, id, fields); err != nil {
		return fmt.Errorf("update model config %d: %w", id, err)
	}
	return nil
}
