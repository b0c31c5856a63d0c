package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/storyforge/pkg/storage"
)

const (
	saveKeyPrefix    = "save:"
	saveIndexKey     = "saves:index"
	modelKeyPrefix   = "model:"
	modelIndexKey    = "models:index"
	settingKeyPrefix = "setting:"
	settingIndexKey  = "settings:index"
)

// RedisStorage implements storage.Store on Redis. Records are JSON strings;
// saves are indexed by a sorted set scored by timestamp so listing is
// newest first without a scan.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Store interface
var _ storage.Store = (*RedisStorage)(nil)

// NewRedisStorage connects to redisURL (redis://host:port/db).
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorageFromClient(redis.NewClient(opt), logger), nil
}

// NewRedisStorageFromClient wraps an existing client.
func NewRedisStorageFromClient(client *redis.Client, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{client: client, logger: logger}
}

// Client returns the underlying client so other components can share the
// connection pool.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Save operations

func (r *RedisStorage) PutSave(ctx context.Context, save *storage.StoredGameSave) error {
	if save == nil || save.ID == "" {
		return errors.New("save with id is required")
	}
	data, err := json.Marshal(save)
	if err != nil {
		return fmt.Errorf("failed to marshal save: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, saveKeyPrefix+save.ID, data, 0)
		pipe.ZAdd(ctx, saveIndexKey, redis.Z{
			Score:  float64(save.Timestamp.UnixMilli()),
			Member: save.ID,
		})
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to store save", "save_id", save.ID, "error", err)
		return fmt.Errorf("failed to store save: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetSave(ctx context.Context, id string) (*storage.StoredGameSave, error) {
	var save storage.StoredGameSave
	found, err := r.getJSON(ctx, saveKeyPrefix+id, &save)
	if err != nil || !found {
		return nil, err
	}
	return &save, nil
}

func (r *RedisStorage) ListSaves(ctx context.Context) ([]*storage.StoredGameSave, error) {
	ids, err := r.client.ZRevRange(ctx, saveIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read save index: %w", err)
	}
	if len(ids) == 0 {
		return []*storage.StoredGameSave{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = saveKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read saves: %w", err)
	}

	saves := make([]*storage.StoredGameSave, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry without a record; a delete raced with this read
			continue
		}
		var save storage.StoredGameSave
		if err := json.Unmarshal([]byte(s), &save); err != nil {
			r.logger.Warn("Skipping corrupt save", "save_id", ids[i], "error", err)
			continue
		}
		saves = append(saves, &save)
	}
	return saves, nil
}

func (r *RedisStorage) DeleteSave(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, saveKeyPrefix+id)
		pipe.ZRem(ctx, saveIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	return nil
}

func (r *RedisStorage) CountSaves(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, saveIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count saves: %w", err)
	}
	return int(n), nil
}

// Model cache operations

func (r *RedisStorage) PutModel(ctx context.Context, model *storage.StoredModel) error {
	if model == nil || model.ID == "" {
		return errors.New("model with id is required")
	}
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, modelKeyPrefix+model.ID, data, 0)
		pipe.SAdd(ctx, modelIndexKey, model.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store model: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetModel(ctx context.Context, id string) (*storage.StoredModel, error) {
	var model storage.StoredModel
	found, err := r.getJSON(ctx, modelKeyPrefix+id, &model)
	if err != nil || !found {
		return nil, err
	}
	return &model, nil
}

func (r *RedisStorage) ListModels(ctx context.Context) ([]*storage.StoredModel, error) {
	ids, err := r.client.SMembers(ctx, modelIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read model index: %w", err)
	}
	models := make([]*storage.StoredModel, 0, len(ids))
	for _, id := range ids {
		model, err := r.GetModel(ctx, id)
		if err != nil {
			return nil, err
		}
		if model != nil {
			models = append(models, model)
		}
	}
	return models, nil
}

func (r *RedisStorage) ClearModels(ctx context.Context) error {
	ids, err := r.client.SMembers(ctx, modelIndexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read model index: %w", err)
	}
	keys := []string{modelIndexKey}
	for _, id := range ids {
		keys = append(keys, modelKeyPrefix+id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear models: %w", err)
	}
	return nil
}

// Settings operations

func (r *RedisStorage) PutSetting(ctx context.Context, setting *storage.StoredSetting) error {
	if setting == nil || setting.Key == "" {
		return errors.New("setting with key is required")
	}
	data, err := json.Marshal(setting)
	if err != nil {
		return fmt.Errorf("failed to marshal setting: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, settingKeyPrefix+setting.Key, data, 0)
		pipe.SAdd(ctx, settingIndexKey, setting.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store setting: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetSetting(ctx context.Context, key string) (*storage.StoredSetting, error) {
	var setting storage.StoredSetting
	found, err := r.getJSON(ctx, settingKeyPrefix+key, &setting)
	if err != nil || !found {
		return nil, err
	}
	return &setting, nil
}

func (r *RedisStorage) ListSettings(ctx context.Context, category string) ([]*storage.StoredSetting, error) {
	keys, err := r.client.SMembers(ctx, settingIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings index: %w", err)
	}
	settings := make([]*storage.StoredSetting, 0, len(keys))
	for _, key := range keys {
		s, err := r.GetSetting(ctx, key)
		if err != nil {
			return nil, err
		}
		if s == nil || (category != "" && s.Category != category) {
			continue
		}
		settings = append(settings, s)
	}
	return settings, nil
}

// getJSON decodes the value at key into v. A missing key is not an error.
func (r *RedisStorage) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.logger.Error("Redis GET failed", "key", key, "error", err)
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
