package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/storyforge/pkg/catalog"
)

type StoriesHandler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewStoriesHandler(cat *catalog.Catalog, logger *slog.Logger) *StoriesHandler {
	return &StoriesHandler{catalog: cat, logger: logger}
}

// ServeHTTP handles
// GET /v1/stories      - list stories
// GET /v1/stories/{id} - full story with its scenes
func (h *StoriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, r, http.MethodGet)
		return
	}

	parts := pathParts(r.URL.Path, "/v1/stories")
	switch len(parts) {
	case 0:
		stories := h.catalog.List()
		out := make([]catalog.Summary, 0, len(stories))
		for _, s := range stories {
			if sum, ok := h.catalog.Metadata(s.ID); ok {
				out = append(out, sum)
			}
		}
		writeJSON(w, h.logger, http.StatusOK, out)
	case 1:
		s, ok := h.catalog.Get(parts[0])
		if !ok {
			writeError(w, h.logger, http.StatusNotFound, "Story not found")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, s)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}
