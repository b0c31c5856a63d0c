package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/storage"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS game_saves (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		game_state BLOB NOT NULL,
		timestamp  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS game_saves_timestamp ON game_saves (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS model_cache (
		id        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		weights   BLOB,
		metadata  BLOB NOT NULL,
		version   TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		key       TEXT PRIMARY KEY,
		value     BLOB NOT NULL,
		category  TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS user_settings_category ON user_settings (category)`,
}

// SQLiteStorage implements storage.Store in a single local database file.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStorage implements Store interface
var _ storage.Store = (*SQLiteStorage)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	logger.Info("SQLite storage opened", "path", path)
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) PutSave(ctx context.Context, save *storage.StoredGameSave) error {
	if save == nil || save.ID == "" {
		return errors.New("save with id is required")
	}
	gs, err := json.Marshal(save.GameState)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_saves (id, name, game_state, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    game_state = excluded.game_state,
		    timestamp = excluded.timestamp`,
		save.ID, save.Name, gs, toMillis(save.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("put save: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetSave(ctx context.Context, id string) (*storage.StoredGameSave, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, game_state, timestamp FROM game_saves WHERE id = ?`, id)
	save, err := scanSave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get save: %w", err)
	}
	return save, nil
}

func (s *SQLiteStorage) ListSaves(ctx context.Context) ([]*storage.StoredGameSave, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, game_state, timestamp FROM game_saves ORDER BY timestamp DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	saves := []*storage.StoredGameSave{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		save, err := scanSave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		saves = append(saves, save)
	}
	return saves, rows.Err()
}

func (s *SQLiteStorage) DeleteSave(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_saves WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CountSaves(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_saves`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count saves: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) PutModel(ctx context.Context, model *storage.StoredModel) error {
	if model == nil || model.ID == "" {
		return errors.New("model with id is required")
	}
	meta, err := json.Marshal(model.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal model metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_cache (id, name, weights, metadata, version, timestamp) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    weights = excluded.weights,
		    metadata = excluded.metadata,
		    version = excluded.version,
		    timestamp = excluded.timestamp`,
		model.ID, model.Name, model.Weights, meta, model.Version, toMillis(model.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("put model: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetModel(ctx context.Context, id string) (*storage.StoredModel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, weights, metadata, version, timestamp FROM model_cache WHERE id = ?`, id)
	model, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	return model, nil
}

func (s *SQLiteStorage) ListModels(ctx context.Context) ([]*storage.StoredModel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, weights, metadata, version, timestamp FROM model_cache ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	models := []*storage.StoredModel{}
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, model)
	}
	return models, rows.Err()
}

func (s *SQLiteStorage) ClearModels(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM model_cache`); err != nil {
		return fmt.Errorf("clear models: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) PutSetting(ctx context.Context, setting *storage.StoredSetting) error {
	if setting == nil || setting.Key == "" {
		return errors.New("setting with key is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (key, value, category, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		    value = excluded.value,
		    category = excluded.category,
		    timestamp = excluded.timestamp`,
		setting.Key, []byte(setting.Value), setting.Category, toMillis(setting.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (*storage.StoredSetting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, category, timestamp FROM user_settings WHERE key = ?`, key)
	setting, err := scanSetting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return setting, nil
}

func (s *SQLiteStorage) ListSettings(ctx context.Context, category string) ([]*storage.StoredSetting, error) {
	query := `SELECT key, value, category, timestamp FROM user_settings`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := []*storage.StoredSetting{}
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSave(row rowScanner) (*storage.StoredGameSave, error) {
	var (
		save storage.StoredGameSave
		raw  []byte
		ts   int64
	)
	if err := row.Scan(&save.ID, &save.Name, &raw, &ts); err != nil {
		return nil, err
	}
	var gs state.GameState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, fmt.Errorf("decode game state %s: %w", save.ID, err)
	}
	save.GameState = &gs
	save.Timestamp = fromMillis(ts)
	return &save, nil
}

func scanModel(row rowScanner) (*storage.StoredModel, error) {
	var (
		model storage.StoredModel
		meta  []byte
		ts    int64
	)
	if err := row.Scan(&model.ID, &model.Name, &model.Weights, &meta, &model.Version, &ts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &model.Metadata); err != nil {
		return nil, fmt.Errorf("decode model metadata %s: %w", model.ID, err)
	}
	model.Timestamp = fromMillis(ts)
	return &model, nil
}

func scanSetting(row rowScanner) (*storage.StoredSetting, error) {
	var (
		setting storage.StoredSetting
		value   []byte
		ts      int64
	)
	if err := row.Scan(&setting.Key, &value, &setting.Category, &ts); err != nil {
		return nil, err
	}
	setting.Value = json.RawMessage(value)
	setting.Timestamp = fromMillis(ts)
	return &setting, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
