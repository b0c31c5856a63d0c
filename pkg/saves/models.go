package saves

import (
	"context"
	"fmt"

	"github.com/jwebster45206/storyforge/pkg/storage"
)

// CacheModel stores model weights compressed with zstd. A zero info.Size is
// filled with the uncompressed length.
func (m *Manager) CacheModel(ctx context.Context, id string, weights []byte, info storage.ModelInfo) error {
	if id == "" {
		return fmt.Errorf("model id is required")
	}
	if info.ID == "" {
		info.ID = id
	}
	if info.Size == 0 {
		info.Size = int64(len(weights))
	}
	name := info.Name
	if name == "" {
		name = id
	}

	model := &storage.StoredModel{
		ID:        id,
		Name:      name,
		Weights:   m.compress(weights),
		Metadata:  info,
		Version:   ModelVersion,
		Timestamp: m.now(),
	}
	if err := m.store.PutModel(ctx, model); err != nil {
		return fmt.Errorf("failed to cache model %s: %w", id, err)
	}
	m.logger.Info("Model cached", "model", id, "bytes", info.Size, "stored_bytes", len(model.Weights))
	return nil
}

// GetCachedModel returns the model with decompressed weights, or nil.
func (m *Manager) GetCachedModel(ctx context.Context, id string) (*storage.StoredModel, error) {
	model, err := m.store.GetModel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached model %s: %w", id, err)
	}
	if model == nil {
		return nil, nil
	}
	weights, err := m.decompress(model.Weights)
	if err != nil {
		return nil, fmt.Errorf("cached model %s is corrupt: %w", id, err)
	}
	model.Weights = weights
	return model, nil
}

// ListCachedModels returns model metadata without weights.
func (m *Manager) ListCachedModels(ctx context.Context) ([]storage.ModelInfo, error) {
	models, err := m.store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached models: %w", err)
	}
	out := make([]storage.ModelInfo, 0, len(models))
	for _, model := range models {
		out = append(out, model.Metadata)
	}
	return out, nil
}

func (m *Manager) ClearModelCache(ctx context.Context) error {
	if err := m.store.ClearModels(ctx); err != nil {
		return fmt.Errorf("failed to clear model cache: %w", err)
	}
	return nil
}
