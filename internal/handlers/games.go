package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/storyforge/internal/game"
)

// ChoiceRequest is the body of POST /v1/games/{id}/choices.
type ChoiceRequest struct {
	ChoiceID string `json:"choiceId"`
}

// SaveRequest is the body of POST /v1/games/{id}/save.
type SaveRequest struct {
	Name string `json:"name"`
}

type SaveResponse struct {
	SaveID string `json:"saveId"`
}

type GamesHandler struct {
	registry *game.Registry
	logger   *slog.Logger
}

func NewGamesHandler(registry *game.Registry, logger *slog.Logger) *GamesHandler {
	return &GamesHandler{registry: registry, logger: logger}
}

// ServeHTTP handles
// POST   /v1/games              - start a game
// GET    /v1/games/{id}         - current state and progress
// DELETE /v1/games/{id}         - end the session
// POST   /v1/games/{id}/choices - make a choice
// GET    /v1/games/{id}/profile - impact profile
// POST   /v1/games/{id}/save    - save the game
func (h *GamesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/games")

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r, http.MethodPost)
			return
		}
		h.handleCreate(w, r)
		return
	}
	if len(parts) > 2 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodDelete {
		if !h.registry.Remove(id) {
			writeError(w, h.logger, http.StatusNotFound, "Game not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sess, ok := h.registry.Get(id)
	if !ok {
		h.logger.Warn("Game not found", "game_id", id)
		writeError(w, h.logger, http.StatusNotFound, "Game not found")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet, http.MethodDelete)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, sess.View())
	case "choices":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r, http.MethodPost)
			return
		}
		h.handleChoice(w, r, sess)
	case "profile":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet)
			return
		}
		profile, err := sess.Profile()
		if err != nil {
			writeErr(w, h.logger, r, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, profile)
	case "save":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r, http.MethodPost)
			return
		}
		h.handleSave(w, r, sess)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *GamesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req game.StartRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Warn("Invalid create game request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	sess, err := h.registry.Create(r.Context(), req)
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, sess.View())
}

func (h *GamesHandler) handleChoice(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	var req ChoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.ChoiceID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "choiceId is required")
		return
	}

	out, err := sess.Choose(r.Context(), req.ChoiceID)
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *GamesHandler) handleSave(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	var req SaveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	id, err := sess.Save(r.Context(), req.Name)
	if err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, SaveResponse{SaveID: id})
}
