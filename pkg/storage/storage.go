package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jwebster45206/storyforge/pkg/state"
)

// DefaultCategory groups settings stored without an explicit category.
const DefaultCategory = "general"

// StoredGameSave is a named, timestamped snapshot of a game. Its ID is the
// game's ID, so saving the same game again overwrites the record.
type StoredGameSave struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	GameState *state.GameState `json:"gameState"`
	Timestamp time.Time        `json:"timestamp"`
}

// ModelInfo describes a language model whose weights may be cached.
type ModelInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Size          int64    `json:"size"`
	Quantization  string   `json:"quantization"`
	ContextLength int      `json:"contextLength"`
	Capabilities  []string `json:"capabilities"`
}

// StoredModel holds cached model weights.
type StoredModel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Weights   []byte    `json:"weights"`
	Metadata  ModelInfo `json:"metadata"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// StoredSetting is a user preference. Value holds arbitrary JSON.
type StoredSetting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Category  string          `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store is the persistent key-value capability behind saves, cached models
// and settings. The three collections are independent; each call is atomic
// for its key and there are no cross-collection transactions.
// Lookups of absent keys return (nil, nil).
type Store interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Saves, listed newest first
	PutSave(ctx context.Context, save *StoredGameSave) error
	GetSave(ctx context.Context, id string) (*StoredGameSave, error)
	ListSaves(ctx context.Context) ([]*StoredGameSave, error)
	DeleteSave(ctx context.Context, id string) error
	CountSaves(ctx context.Context) (int, error)

	// Cached model weights
	PutModel(ctx context.Context, model *StoredModel) error
	GetModel(ctx context.Context, id string) (*StoredModel, error)
	ListModels(ctx context.Context) ([]*StoredModel, error)
	ClearModels(ctx context.Context) error

	// Settings; an empty category lists every setting
	PutSetting(ctx context.Context, setting *StoredSetting) error
	GetSetting(ctx context.Context, key string) (*StoredSetting, error)
	ListSettings(ctx context.Context, category string) ([]*StoredSetting, error)
}
