package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/storyforge/pkg/saves"
)

// SettingRequest is the body of PUT /v1/settings/{key}.
type SettingRequest struct {
	Value    json.RawMessage `json:"value"`
	Category string          `json:"category,omitempty"`
}

type SettingResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type SettingsHandler struct {
	saves  *saves.Manager
	logger *slog.Logger
}

func NewSettingsHandler(mgr *saves.Manager, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{saves: mgr, logger: logger}
}

// ServeHTTP handles
// GET /v1/settings?category=c - all settings, optionally of one category
// GET /v1/settings/{key}      - one setting, null when unset
// PUT /v1/settings/{key}      - store a setting
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/settings")

	switch len(parts) {
	case 0:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r, http.MethodGet)
			return
		}
		all, err := h.saves.GetAllSettings(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			writeErr(w, h.logger, r, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, all)
	case 1:
		key := parts[0]
		switch r.Method {
		case http.MethodGet:
			v, err := h.saves.GetSetting(r.Context(), key, nil)
			if err != nil {
				writeErr(w, h.logger, r, err)
				return
			}
			writeJSON(w, h.logger, http.StatusOK, SettingResponse{Key: key, Value: v})
		case http.MethodPut:
			h.handlePut(w, r, key)
		default:
			methodNotAllowed(w, h.logger, r, http.MethodGet, http.MethodPut)
		}
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SettingsHandler) handlePut(w http.ResponseWriter, r *http.Request, key string) {
	var req SettingRequest
	if err := decodeBody(r, &req); err != nil || len(req.Value) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "Body must be a JSON object with a value")
		return
	}
	var v any
	if err := json.Unmarshal(req.Value, &v); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid setting value")
		return
	}
	if err := h.saves.SetSetting(r.Context(), key, v, req.Category); err != nil {
		writeErr(w, h.logger, r, err)
		return
	}
	h.logger.Info("Setting updated", "key", key)
	writeJSON(w, h.logger, http.StatusOK, SettingResponse{Key: key, Value: v})
}
