package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MockStorage is an in-memory Store for tests and for running without a
// database.
type MockStorage struct {
	mu        sync.RWMutex
	saves     map[string]*StoredGameSave
	models    map[string]*StoredModel
	settings  map[string]*StoredSetting
	pingError error
	putError  error
	getError  error
}

// Ensure MockStorage implements Store interface
var _ Store = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		saves:    make(map[string]*StoredGameSave),
		models:   make(map[string]*StoredModel),
		settings: make(map[string]*StoredSetting),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetPutError makes every write fail with err until cleared with nil.
func (m *MockStorage) SetPutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putError = err
}

// SetGetError makes GetSave fail with err until cleared with nil.
func (m *MockStorage) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) PutSave(ctx context.Context, save *StoredGameSave) error {
	if save == nil || save.ID == "" {
		return errors.New("save with id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return m.putError
	}
	cp := *save
	cp.GameState = save.GameState.Clone()
	m.saves[save.ID] = &cp
	return nil
}

func (m *MockStorage) GetSave(ctx context.Context, id string) (*StoredGameSave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getError != nil {
		return nil, m.getError
	}
	s, ok := m.saves[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.GameState = s.GameState.Clone()
	return &cp, nil
}

func (m *MockStorage) ListSaves(ctx context.Context) ([]*StoredGameSave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StoredGameSave, 0, len(m.saves))
	for _, s := range m.saves {
		cp := *s
		cp.GameState = s.GameState.Clone()
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MockStorage) DeleteSave(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves, id)
	return nil
}

func (m *MockStorage) CountSaves(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saves), nil
}

func (m *MockStorage) PutModel(ctx context.Context, model *StoredModel) error {
	if model == nil || model.ID == "" {
		return errors.New("model with id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return m.putError
	}
	cp := *model
	cp.Weights = append([]byte(nil), model.Weights...)
	m.models[model.ID] = &cp
	return nil
}

func (m *MockStorage) GetModel(ctx context.Context, id string) (*StoredModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	model, ok := m.models[id]
	if !ok {
		return nil, nil
	}
	cp := *model
	return &cp, nil
}

func (m *MockStorage) ListModels(ctx context.Context) ([]*StoredModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StoredModel, 0, len(m.models))
	for _, model := range m.models {
		cp := *model
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStorage) ClearModels(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = make(map[string]*StoredModel)
	return nil
}

func (m *MockStorage) PutSetting(ctx context.Context, setting *StoredSetting) error {
	if setting == nil || setting.Key == "" {
		return errors.New("setting with key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return m.putError
	}
	cp := *setting
	m.settings[setting.Key] = &cp
	return nil
}

func (m *MockStorage) GetSetting(ctx context.Context, key string) (*StoredSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MockStorage) ListSettings(ctx context.Context, category string) ([]*StoredSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StoredSetting, 0, len(m.settings))
	for _, s := range m.settings {
		if category != "" && s.Category != category {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
