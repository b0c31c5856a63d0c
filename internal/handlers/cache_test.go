package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/internal/assetcache"
)

func TestCacheHandler(t *testing.T) {
	logger := testLogger()
	cache, err := assetcache.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	h := NewCacheHandler(cache, logger)

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/models/phi-3-mini", strings.NewReader("weights"))
	req.Header.Set("X-Model-Version", "2")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(t, h, http.MethodGet, "/v1/cache/info", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode[assetcache.Info](t, rr)
	assert.Equal(t, 1, info.Models)
	assert.Equal(t, 1, info.Caches)
	assert.Equal(t, int64(len("weights")), info.TotalSize)

	e, err := cache.Get(assetcache.ModelPrefix + "phi-3-mini")
	require.NoError(t, err)
	assert.Equal(t, "2", e.Version)

	rr = doRequest(t, h, http.MethodDelete, "/v1/cache", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/v1/cache/info", nil)
	assert.Equal(t, assetcache.Info{}, decode[assetcache.Info](t, rr))
}

func TestCacheHandler_Errors(t *testing.T) {
	logger := testLogger()
	cache, err := assetcache.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	h := NewCacheHandler(cache, logger)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty weights", http.MethodPost, "/v1/cache/models/x", "", http.StatusBadRequest},
		{"get models", http.MethodGet, "/v1/cache/models/x", nil, http.StatusMethodNotAllowed},
		{"post info", http.MethodPost, "/v1/cache/info", nil, http.StatusMethodNotAllowed},
		{"get root", http.MethodGet, "/v1/cache", nil, http.StatusMethodNotAllowed},
		{"unknown", http.MethodGet, "/v1/cache/other", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
