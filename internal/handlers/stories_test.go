package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/pkg/catalog"
	"github.com/jwebster45206/storyforge/pkg/story"
)

func TestStoriesHandler(t *testing.T) {
	env := newTestEnv(t)
	h := NewStoriesHandler(env.catalog, env.logger)

	rr := doRequest(t, h, http.MethodGet, "/v1/stories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]catalog.Summary](t, rr)
	require.Len(t, list, env.catalog.Len())
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	assert.Contains(t, ids, "mysterious-portal")

	rr = doRequest(t, h, http.MethodGet, "/v1/stories/mysterious-portal", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	s := decode[story.Story](t, rr)
	assert.Equal(t, "portal-intro", s.StartSceneID)
	assert.Len(t, s.Scenes, 5)

	rr = doRequest(t, h, http.MethodGet, "/v1/stories/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/v1/stories", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
