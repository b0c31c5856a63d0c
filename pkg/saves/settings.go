package saves

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/storyforge/pkg/storage"
)

// Well-known setting keys.
const (
	SettingAutosave       = "autosave"
	SettingSound          = "sound"
	SettingDifficulty     = "difficulty"
	SettingContentFilter  = "content_filter"
	SettingPreferredModel = "preferred_model"
)

// SetSetting stores value as JSON under key. An empty category means
// storage.DefaultCategory.
func (m *Manager) SetSetting(ctx context.Context, key string, value any, category string) error {
	if key == "" {
		return fmt.Errorf("setting key is required")
	}
	if category == "" {
		category = storage.DefaultCategory
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	setting := &storage.StoredSetting{
		Key:       key,
		Value:     raw,
		Category:  category,
		Timestamp: m.now(),
	}
	if err := m.store.PutSetting(ctx, setting); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the decoded value stored under key, or def when the
// key has never been set.
func (m *Manager) GetSetting(ctx context.Context, key string, def any) (any, error) {
	setting, err := m.store.GetSetting(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	if setting == nil {
		return def, nil
	}
	var v any
	if err := json.Unmarshal(setting.Value, &v); err != nil {
		return nil, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return v, nil
}

// GetAllSettings maps key to decoded value for one category, or for every
// category when category is empty.
func (m *Manager) GetAllSettings(ctx context.Context, category string) (map[string]any, error) {
	settings, err := m.store.ListSettings(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]any, len(settings))
	for _, s := range settings {
		var v any
		if err := json.Unmarshal(s.Value, &v); err != nil {
			m.logger.Warn("Skipping undecodable setting", "key", s.Key, "error", err)
			continue
		}
		out[s.Key] = v
	}
	return out, nil
}

// Setting decodes the value under key into T, falling back to def when the
// key is absent or holds a value of another shape.
func Setting[T any](ctx context.Context, m *Manager, key string, def T) (T, error) {
	setting, err := m.store.GetSetting(ctx, key)
	if err != nil {
		return def, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	if setting == nil {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(setting.Value, &v); err != nil {
		m.logger.Warn("Setting has unexpected type, using default", "key", key, "error", err)
		return def, nil
	}
	return v, nil
}
