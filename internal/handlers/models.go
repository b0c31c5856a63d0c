package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/pkg/saves"
)

type ModelsResponse struct {
	Models []llm.ModelConfig `json:"models"`
	Loaded string            `json:"loaded,omitempty"`
}

// ModelStatus is the body of GET /v1/models/loaded.
type ModelStatus struct {
	Loaded   bool                 `json:"loaded"`
	Model    *llm.ModelConfig     `json:"model,omitempty"`
	Progress *llm.LoadingProgress `json:"progress,omitempty"`
	Error    string               `json:"error,omitempty"`
}

type ModelsHandler struct {
	loader llm.Loader
	saves  *saves.Manager
	logger *slog.Logger
}

// NewModelsHandler serves model selection. mgr may be nil; when set, a
// successful load is remembered as the preferred model.
func NewModelsHandler(loader llm.Loader, mgr *saves.Manager, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{loader: loader, saves: mgr, logger: logger}
}

// ServeHTTP handles
// GET    /v1/models               - selectable models
// POST   /v1/models/{id}/load     - start loading a model (?wait=true blocks)
// GET    /v1/models/loaded        - loaded model and loading progress
// DELETE /v1/models/loaded        - unload the model
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/models")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet)
			return
		}
		resp := ModelsResponse{Models: h.loader.Available()}
		if cfg, ok := h.loader.LoadedModel(); ok {
			resp.Loaded = cfg.ID
		}
		writeJSON(w, h.logger, http.StatusOK, resp)
	case len(parts) == 1 && parts[0] == "loaded":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, h.logger, http.StatusOK, h.status())
		case http.MethodDelete:
			if err := h.loader.Unload(r.Context()); err != nil {
				writeErr(w, h.logger, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, h.logger, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "load":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r, http.MethodPost)
			return
		}
		h.handleLoad(w, r, parts[0])
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *ModelsHandler) status() ModelStatus {
	st := ModelStatus{Progress: h.loader.Progress()}
	if cfg, ok := h.loader.LoadedModel(); ok {
		st.Loaded = true
		st.Model = &cfg
	}
	if err := h.loader.LastError(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (h *ModelsHandler) handleLoad(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := llm.FindModel(h.loader.Available(), id); !ok {
		writeError(w, h.logger, http.StatusNotFound, "Unknown model: "+id)
		return
	}
	if h.loader.Progress() != nil {
		writeError(w, h.logger, http.StatusConflict, "A model is already loading")
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		if err := h.load(r.Context(), id); err != nil {
			writeErr(w, h.logger, r, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, h.status())
		return
	}

	// Downloads outlive the request.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.load(ctx, id); err != nil {
			h.logger.Error("Background model load failed", "model", id, "error", err)
		}
	}()
	writeJSON(w, h.logger, http.StatusAccepted, h.status())
}

func (h *ModelsHandler) load(ctx context.Context, id string) error {
	if err := h.loader.Load(ctx, id, nil); err != nil {
		return err
	}
	if h.saves != nil {
		if err := h.saves.SetSetting(ctx, saves.SettingPreferredModel, id, "models"); err != nil {
			h.logger.Warn("Failed to remember preferred model", "model", id, "error", err)
		}
	}
	return nil
}
