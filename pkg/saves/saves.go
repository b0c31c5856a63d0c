// Package saves persists game snapshots, user settings and cached model
// weights on top of a storage.Store.
package saves

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/storage"
)

var (
	ErrNotFound    = errors.New("save not found")
	ErrInvalidSave = errors.New("invalid save data")
)

// ModelVersion is stamped on every cached model record.
const ModelVersion = "1.0.0"

// Manager is the save persistence adapter. It holds no game state of its
// own; concurrent saves of the same game are last-writer-wins.
type Manager struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewManager(store storage.Store, logger *slog.Logger) (*Manager, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Manager{
		store:   store,
		logger:  logger,
		now:     time.Now,
		encoder: enc,
		decoder: dec,
	}, nil
}

// Close releases the compression workers. The underlying store is owned by
// the caller.
func (m *Manager) Close() {
	m.decoder.Close()
	_ = m.encoder.Close()
}

func defaultSaveName(t time.Time) string {
	return "Save " + t.Format("2006-01-02 15:04:05")
}

// Save upserts a snapshot of gs keyed by its id and returns that id.
func (m *Manager) Save(ctx context.Context, gs *state.GameState, name string) (string, error) {
	if gs == nil || gs.ID == "" {
		return "", errors.New("game state with id is required")
	}
	now := m.now()
	if strings.TrimSpace(name) == "" {
		name = defaultSaveName(now)
	}

	save := &storage.StoredGameSave{
		ID:        gs.ID,
		Name:      name,
		GameState: gs.Clone(),
		Timestamp: now,
	}
	if err := m.store.PutSave(ctx, save); err != nil {
		m.logger.Error("Failed to store save", "game_id", gs.ID, "error", err)
		return "", fmt.Errorf("failed to store save: %w", err)
	}

	m.logger.Debug("Game saved", "game_id", gs.ID, "name", name)
	return save.ID, nil
}

// Load returns the saved game state, or nil when there is no such save.
func (m *Manager) Load(ctx context.Context, id string) (*state.GameState, error) {
	save, err := m.Get(ctx, id)
	if err != nil || save == nil {
		return nil, err
	}
	return save.GameState, nil
}

// Get returns the full save record, or nil when absent.
func (m *Manager) Get(ctx context.Context, id string) (*storage.StoredGameSave, error) {
	save, err := m.store.GetSave(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load save: %w", err)
	}
	return save, nil
}

// List returns all saves, newest first.
func (m *Manager) List(ctx context.Context) ([]*storage.StoredGameSave, error) {
	saves, err := m.store.ListSaves(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	return saves, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteSave(ctx, id); err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	return nil
}

// Export renders the full save record as indented JSON.
func (m *Manager) Export(ctx context.Context, id string) (string, error) {
	save, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if save == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := json.MarshalIndent(save, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode save: %w", err)
	}
	return string(data), nil
}

// Import stores a record produced by Export under a fresh timestamp and
// returns its game id. Anything that is not exactly that shape is rejected
// with ErrInvalidSave.
func (m *Manager) Import(ctx context.Context, text string) (string, error) {
	save, err := decodeSave(text)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(save.Name) == "" {
		save.Name = defaultSaveName(m.now())
	}
	save.Timestamp = m.now()

	if err := m.store.PutSave(ctx, save); err != nil {
		return "", fmt.Errorf("failed to store imported save: %w", err)
	}
	m.logger.Info("Save imported", "game_id", save.ID)
	return save.ID, nil
}

func decodeSave(text string) (*storage.StoredGameSave, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()

	var save storage.StoredGameSave
	if err := dec.Decode(&save); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSave, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after save record", ErrInvalidSave)
	}
	if save.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidSave)
	}
	if save.GameState == nil {
		return nil, fmt.Errorf("%w: missing gameState", ErrInvalidSave)
	}
	if save.GameState.ID != save.ID {
		return nil, fmt.Errorf("%w: save id %q does not match game id %q", ErrInvalidSave, save.ID, save.GameState.ID)
	}
	if err := save.GameState.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSave, err)
	}
	return &save, nil
}

// Info summarizes what is held in storage.
type Info struct {
	Saves         int    `json:"saves"`
	Models        int    `json:"models"`
	Settings      int    `json:"settings"`
	EstimatedSize string `json:"estimatedSize"`
}

// StorageInfo counts records. The size estimate covers model weights only,
// rounded to whole megabytes.
func (m *Manager) StorageInfo(ctx context.Context) (*Info, error) {
	saves, err := m.store.CountSaves(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count saves: %w", err)
	}
	models, err := m.store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count models: %w", err)
	}
	settings, err := m.store.ListSettings(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count settings: %w", err)
	}

	var bytesTotal int64
	for _, model := range models {
		bytesTotal += model.Metadata.Size
	}
	return &Info{
		Saves:         saves,
		Models:        len(models),
		Settings:      len(settings),
		EstimatedSize: fmt.Sprintf("%dMB", int64(math.Round(float64(bytesTotal)/(1024*1024)))),
	}, nil
}

func (m *Manager) compress(data []byte) []byte {
	return m.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (m *Manager) decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return m.decoder.DecodeAll(data, nil)
}
