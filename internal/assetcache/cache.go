// Package assetcache is a read-through cache for static assets and model
// blobs, stored in badger with zstd-compressed values.
package assetcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// Partitions.
const (
	Static  = "static"
	Dynamic = "dynamic"
)

var partitions = []string{Static, Dynamic}

// ModelPrefix is the path prefix model blobs are cached under.
const ModelPrefix = "/models/"

// DefaultStaticAssets are fetched into the static partition by Warm.
var DefaultStaticAssets = []string{"/", "/index.html"}

var ErrNotCached = errors.New("not cached")

// Entry is one cached response.
type Entry struct {
	Path        string    `json:"path"`
	ContentType string    `json:"contentType"`
	ModelID     string    `json:"modelId,omitempty"`
	Version     string    `json:"version,omitempty"`
	Size        int64     `json:"size"`
	CachedAt    time.Time `json:"cachedAt"`
	Body        []byte    `json:"body"`
}

// Info summarises the cache.
type Info struct {
	Caches    int   `json:"caches"`
	TotalSize int64 `json:"totalSize"`
	Models    int   `json:"models"`
}

type Cache struct {
	db     *badger.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Open opens the cache in dir, or in memory when dir is empty.
func Open(dir string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset cache: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Cache{
		db:     db,
		enc:    enc,
		dec:    dec,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		now:    time.Now,
	}, nil
}

func (c *Cache) Close() error {
	c.dec.Close()
	_ = c.enc.Close()
	return c.db.Close()
}

func key(partition, path string) []byte {
	return []byte(partition + ":" + path)
}

// Put stores entry in partition.
func (c *Cache) Put(partition string, e *Entry) error {
	if e.CachedAt.IsZero() {
		e.CachedAt = c.now()
	}
	e.Size = int64(len(e.Body))

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	packed := c.enc.EncodeAll(data, nil)

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(partition, e.Path), packed)
	})
}

// Get returns the entry for path from any partition, static first.
func (c *Cache) Get(path string) (*Entry, error) {
	var entry *Entry
	err := c.db.View(func(txn *badger.Txn) error {
		for _, p := range partitions {
			item, err := txn.Get(key(p, path))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			packed, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err = c.decode(packed)
			return err
		}
		return ErrNotCached
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Cache) decode(packed []byte) (*Entry, error) {
	data, err := c.dec.DecodeAll(packed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cache entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &e, nil
}

// CacheModel stores model weights under /models/<id> in the dynamic partition.
func (c *Cache) CacheModel(id, version string, weights []byte) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("model id is required")
	}
	err := c.Put(Dynamic, &Entry{
		Path:        ModelPrefix + id,
		ContentType: "application/octet-stream",
		ModelID:     id,
		Version:     version,
		Body:        weights,
	})
	if err != nil {
		return err
	}
	c.logger.Info("Cached model", "model_id", id, "version", version, "bytes", len(weights))
	return nil
}

// Info reports the number of non-empty partitions, the total uncompressed
// size and how many entries are model blobs.
func (c *Cache) Info() (*Info, error) {
	info := &Info{}
	err := c.db.View(func(txn *badger.Txn) error {
		for _, p := range partitions {
			prefix := []byte(p + ":")
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			seen := false
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				packed, err := it.Item().ValueCopy(nil)
				if err != nil {
					it.Close()
					return err
				}
				e, err := c.decode(packed)
				if err != nil {
					it.Close()
					return err
				}
				seen = true
				info.TotalSize += e.Size
				if strings.Contains(e.Path, ModelPrefix) {
					info.Models++
				}
			}
			it.Close()
			if seen {
				info.Caches++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Clear drops every partition.
func (c *Cache) Clear() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear asset cache: %w", err)
	}
	c.logger.Info("All caches cleared")
	return nil
}

// Warm fetches paths from upstream into the static partition. Failures are
// logged and skipped.
func (c *Cache) Warm(ctx context.Context, upstream string, paths []string) int {
	cached := 0
	for _, p := range paths {
		e, status, err := c.fetch(ctx, upstream, p)
		if err != nil || status != http.StatusOK {
			c.logger.Warn("Failed to cache static asset", "path", p, "status", status, "error", err)
			continue
		}
		if err := c.Put(Static, e); err != nil {
			c.logger.Warn("Failed to store static asset", "path", p, "error", err)
			continue
		}
		cached++
	}
	return cached
}

func (c *Cache) fetch(ctx context.Context, upstream, path string) (*Entry, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(upstream, "/")+path, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return &Entry{
		Path:        path,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, resp.StatusCode, nil
}
