package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/pkg/storage"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

type HealthHandler struct {
	store  storage.Store
	loader llm.Loader
	logger *slog.Logger
}

// NewHealthHandler reports on storage and the model loader. loader may be nil
// when no language model provider is configured.
func NewHealthHandler(store storage.Store, loader llm.Loader, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		loader: loader,
		logger: logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		components["storage"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["storage"] = "healthy"
	}

	// A missing model only limits play to authored stories.
	switch {
	case h.loader == nil:
		components["model"] = "disabled"
	case h.loader.Ready():
		cfg, _ := h.loader.LoadedModel()
		components["model"] = cfg.ID
	case h.loader.Progress() != nil:
		components["model"] = "loading"
	default:
		components["model"] = "not_loaded"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "storyforge",
		Components: components,
	})
}
