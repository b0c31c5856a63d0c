package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/storyforge/internal/game"
	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/pkg/saves"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// maxBodyBytes bounds request bodies other than model uploads.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, saves.ErrNotFound),
		errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, game.ErrStoryNotFound),
		errors.Is(err, llm.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, game.ErrChoiceNotFound),
		errors.Is(err, game.ErrInvalidMode),
		errors.Is(err, saves.ErrInvalidSave):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrGenerationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeErr logs err and writes it with the status statusFor picks.
func writeErr(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		logger.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, logger, status, err.Error())
}

func methodNotAllowed(w http.ResponseWriter, logger *slog.Logger, r *http.Request, allowed ...string) {
	logger.Warn("Method not allowed", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, logger, http.StatusMethodNotAllowed,
		"Method not allowed. Supported methods: "+strings.Join(allowed, ", "))
}

// pathParts splits the path below prefix, so "/v1/games/abc/save" with
// prefix "/v1/games" gives ["abc", "save"].
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
