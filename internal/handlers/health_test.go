package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/pkg/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := testLogger()

	tests := []struct {
		name           string
		setupStore     func() storage.Store
		setupLoader    func() llm.Loader
		expectedStatus int
		expectedHealth string
		expectedStore  string
		expectedModel  string
	}{
		{
			name:           "all healthy",
			setupStore:     func() storage.Store { return storage.NewMockStorage() },
			setupLoader:    func() llm.Loader { return llm.NewMockGenerator() },
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
			expectedModel:  "phi-3-mini",
		},
		{
			name: "unhealthy storage",
			setupStore: func() storage.Store {
				s := storage.NewMockStorage()
				s.SetPingError(errors.New("connection failed"))
				return s
			},
			setupLoader:    func() llm.Loader { return llm.NewMockGenerator() },
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "unhealthy",
			expectedModel:  "phi-3-mini",
		},
		{
			name:       "no model loaded",
			setupStore: func() storage.Store { return storage.NewMockStorage() },
			setupLoader: func() llm.Loader {
				g := llm.NewMockGenerator()
				g.SetNotReady()
				return g
			},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
			expectedModel:  "not_loaded",
		},
		{
			name:           "no provider",
			setupStore:     func() storage.Store { return storage.NewMockStorage() },
			setupLoader:    func() llm.Loader { return nil },
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
			expectedModel:  "disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.setupStore(), tt.setupLoader(), logger)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.expectedHealth {
				t.Errorf("expected health %q, got %q", tt.expectedHealth, response.Status)
			}
			if response.Service != "storyforge" {
				t.Errorf("expected service storyforge, got %q", response.Service)
			}
			if got := response.Components["storage"]; got != tt.expectedStore {
				t.Errorf("expected storage %q, got %q", tt.expectedStore, got)
			}
			if got := response.Components["model"]; got != tt.expectedModel {
				t.Errorf("expected model %q, got %q", tt.expectedModel, got)
			}
		})
	}
}
