package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/storage"
	"github.com/jwebster45206/storyforge/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) *RedisStorage {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewRedisStorage("redis://"+mr.Addr(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create redis storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func setupTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "storyforge.db"), testLogger())
	if err != nil {
		t.Fatalf("Failed to open sqlite storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// backends runs the same contract against every Store implementation.
func backends(t *testing.T) map[string]storage.Store {
	return map[string]storage.Store{
		"redis":  setupTestRedis(t),
		"sqlite": setupTestSQLite(t),
		"mock":   storage.NewMockStorage(),
	}
}

func newSave(id, name string, ts time.Time) *storage.StoredGameSave {
	gs := state.NewGameState(name, ts)
	gs.ID = id
	gs.CurrentScene = &story.Scene{ID: "portal-intro", Title: "The Mysterious Portal"}
	gs.PlayerChoices = []story.Choice{{ID: "step-through", NextSceneID: "forest-arrival", Impact: story.Impact{Narrative: 8, Character: 6, World: 7}}}
	gs.GameProgress.ChoicesMade = 1
	gs.GameProgress.ScenesVisited = 2
	return &storage.StoredGameSave{ID: id, Name: name, GameState: gs, Timestamp: ts}
}

func TestStore_Saves(t *testing.T) {
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Ping(ctx))

			missing, err := store.GetSave(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, store.PutSave(ctx, newSave("a", "first", base)))
			require.NoError(t, store.PutSave(ctx, newSave("b", "second", base.Add(time.Minute))))
			require.NoError(t, store.PutSave(ctx, newSave("c", "third", base.Add(2*time.Minute))))

			got, err := store.GetSave(ctx, "b")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "second", got.Name)
			assert.True(t, got.Timestamp.Equal(base.Add(time.Minute)))
			assert.Equal(t, "portal-intro", got.GameState.CurrentScene.ID)
			assert.Equal(t, 1, got.GameState.GameProgress.ChoicesMade)
			assert.Equal(t, 8, got.GameState.PlayerChoices[0].Impact.Narrative)

			// upsert moves "a" to the front
			require.NoError(t, store.PutSave(ctx, newSave("a", "first again", base.Add(3*time.Minute))))

			list, err := store.ListSaves(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"a", "c", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})
			assert.Equal(t, "first again", list[0].Name)

			require.NoError(t, store.DeleteSave(ctx, "c"))
			list, err = store.ListSaves(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)

			n, err := store.CountSaves(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			gone, err := store.GetSave(ctx, "c")
			require.NoError(t, err)
			assert.Nil(t, gone)
		})
	}
}

func TestStore_Models(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			model := &storage.StoredModel{
				ID:      "phi-3-mini",
				Name:    "Phi-3 Mini",
				Weights: []byte{1, 2, 3, 4},
				Metadata: storage.ModelInfo{
					ID:            "phi-3-mini",
					Size:          4,
					Quantization:  "q4f16_1",
					ContextLength: 4096,
					Capabilities:  []string{"text-generation"},
				},
				Version:   "1.0.0",
				Timestamp: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			}
			require.NoError(t, store.PutModel(ctx, model))

			got, err := store.GetModel(ctx, "phi-3-mini")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, model.Weights, got.Weights)
			assert.Equal(t, model.Metadata, got.Metadata)

			list, err := store.ListModels(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			require.NoError(t, store.ClearModels(ctx))
			got, err = store.GetModel(ctx, "phi-3-mini")
			require.NoError(t, err)
			assert.Nil(t, got)
			list, err = store.ListModels(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestStore_Settings(t *testing.T) {
	ts := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			put := func(key, value, category string) {
				require.NoError(t, store.PutSetting(ctx, &storage.StoredSetting{
					Key: key, Value: json.RawMessage(value), Category: category, Timestamp: ts,
				}))
			}
			put("autosave", "true", "gameplay")
			put("difficulty", `"hard"`, "gameplay")
			put("sound", "false", "audio")
			put("autosave", "false", "gameplay")

			got, err := store.GetSetting(ctx, "autosave")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.JSONEq(t, "false", string(got.Value))
			assert.Equal(t, "gameplay", got.Category)

			missing, err := store.GetSetting(ctx, "volume")
			require.NoError(t, err)
			assert.Nil(t, missing)

			gameplay, err := store.ListSettings(ctx, "gameplay")
			require.NoError(t, err)
			assert.Len(t, gameplay, 2)

			all, err := store.ListSettings(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestRedisStorage_PingFailsWhenServerGone(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedisStorage("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStorage_InvalidURL(t *testing.T) {
	_, err := NewRedisStorage("not a url", testLogger())
	assert.Error(t, err)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ", testLogger())
	assert.Error(t, err)
}
