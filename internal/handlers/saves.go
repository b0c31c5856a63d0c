package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/storyforge/internal/game"
	"github.com/jwebster45206/storyforge/pkg/saves"
)

// SaveSummary is the list form of a save.
type SaveSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`
	SceneTitle  string    `json:"sceneTitle,omitempty"`
	ChoicesMade int       `json:"choicesMade"`
}

type SavesHandler struct {
	saves    *saves.Manager
	registry *game.Registry
	logger   *slog.Logger
}

func NewSavesHandler(mgr *saves.Manager, registry *game.Registry, logger *slog.Logger) *SavesHandler {
	return &SavesHandler{saves: mgr, registry: registry, logger: logger}
}

// ServeHTTP handles
// GET    /v1/saves             - list saves, newest first
// POST   /v1/saves             - import an exported save
// GET    /v1/saves/{id}        - load a save into a live game
// DELETE /v1/saves/{id}        - delete a save
// GET    /v1/saves/{id}/export - download a save
func (h *SavesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/saves")

	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleImport(w, r)
		default:
			methodNotAllowed(w, h.logger, r, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleLoad(w, r, parts[0])
		case http.MethodDelete:
			if err := h.saves.Delete(r.Context(), parts[0]); err != nil {
				writeErr(w, h.logger, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, h.logger, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "export":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet)
			return
		}
		h.handleExport(w, r, parts[0])
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SavesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.saves.List(r.Context())
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	out := make([]SaveSummary, 0, len(list))
	for _, s := range list {
		sum := SaveSummary{ID: s.ID, Name: s.Name, Timestamp: s.Timestamp}
		if s.GameState != nil {
			sum.ChoicesMade = s.GameState.GameProgress.ChoicesMade
			if s.GameState.CurrentScene != nil {
				sum.SceneTitle = s.GameState.CurrentScene.Title
			}
		}
		out = append(out, sum)
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *SavesHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Failed to read request body")
		return
	}
	id, err := h.saves.Import(r.Context(), string(body))
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, SaveResponse{SaveID: id})
}

func (h *SavesHandler) handleLoad(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.registry.Resume(r.Context(), id)
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	h.logger.Info("Save loaded", "save_id", id, "game_id", sess.ID())
	writeJSON(w, h.logger, http.StatusOK, sess.View())
}

func (h *SavesHandler) handleExport(w http.ResponseWriter, r *http.Request, id string) {
	text, err := h.saves.Export(r.Context(), id)
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "storyforge-save-"+id+".json"))
	if _, err := io.WriteString(w, text); err != nil {
		h.logger.Error("Failed to write export", "save_id", id, "error", err)
	}
}

// StorageInfo handles GET /v1/storage.
func (h *SavesHandler) StorageInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, r, http.MethodGet)
		return
	}
	info, err := h.saves.StorageInfo(r.Context())
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, info)
}
