package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/internal/events"
	"github.com/jwebster45206/storyforge/internal/game"
	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/pkg/catalog"
	"github.com/jwebster45206/storyforge/pkg/saves"
	"github.com/jwebster45206/storyforge/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

type testEnv struct {
	store    *storage.MockStorage
	saves    *saves.Manager
	gen      *llm.MockGenerator
	hub      *events.Hub
	catalog  *catalog.Catalog
	registry *game.Registry
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	cat, err := catalog.Default()
	require.NoError(t, err)
	store := storage.NewMockStorage()
	mgr, err := saves.NewManager(store, logger)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	gen := llm.NewMockGenerator()
	hub := events.NewHub()
	registry := game.NewRegistry(game.Deps{
		Catalog:   cat,
		Generator: gen,
		Saves:     mgr,
		Events:    hub,
		Logger:    logger,
	})
	return &testEnv{
		store:    store,
		saves:    mgr,
		gen:      gen,
		hub:      hub,
		catalog:  cat,
		registry: registry,
		logger:   logger,
	}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}
