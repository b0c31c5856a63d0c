package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/storyforge/internal/assetcache"
)

// maxModelBytes bounds uploaded model weights.
const maxModelBytes = 4 << 30

type CacheHandler struct {
	cache  *assetcache.Cache
	logger *slog.Logger
}

func NewCacheHandler(cache *assetcache.Cache, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// ServeHTTP handles the asset cache control commands:
// POST   /v1/cache/models/{id} - store model weights (X-Model-Version header)
// GET    /v1/cache/info        - cache names, total size and cached models
// DELETE /v1/cache             - drop every cache
func (h *CacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/cache")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, h.logger, r, http.MethodDelete)
			return
		}
		if err := h.cache.Clear(); err != nil {
			writeErr(w, h.logger, r, err)
			return
		}
		h.logger.Info("Asset cache cleared")
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 1 && parts[0] == "info":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet)
			return
		}
		info, err := h.cache.Info()
		if err != nil {
			writeErr(w, h.logger, r, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, info)
	case len(parts) == 2 && parts[0] == "models":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r, http.MethodPost)
			return
		}
		h.handleCacheModel(w, r, parts[1])
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *CacheHandler) handleCacheModel(w http.ResponseWriter, r *http.Request, id string) {
	weights, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxModelBytes))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Failed to read model weights")
		return
	}
	if len(weights) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "Model weights are required")
		return
	}
	version := r.Header.Get("X-Model-Version")
	if version == "" {
		version = "1"
	}
	if err := h.cache.CacheModel(id, version, weights); err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]any{
		"id":      id,
		"version": version,
		"size":    len(weights),
	})
}
