package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/internal/events"
	"github.com/jwebster45206/storyforge/pkg/state"
)

// readEvent returns the next event name and data line from an SSE stream.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsHandler_Stream(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(NewEventsHandler(hub, testLogger()))
	defer srv.Close()

	gameID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/games/"+gameID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	name, data := readEvent(t, rd)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, gameID)

	require.NoError(t, hub.Publish(ctx, events.Saved(gameID, gameID, "Checkpoint", time.Now())))
	require.NoError(t, hub.Publish(ctx, events.Saved(uuid.NewString(), "other", "Elsewhere", time.Now())))

	name, data = readEvent(t, rd)
	assert.Equal(t, string(events.EventTypeGameSaved), name)
	assert.Contains(t, data, `"name":"Checkpoint"`)
}

func TestEventsHandler_TypeFilter(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(NewEventsHandler(hub, testLogger()))
	defer srv.Close()

	gameID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := srv.URL + "/v1/events/games/" + gameID + "?types=" + string(events.EventTypeGameSaved)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, rd)
	require.Equal(t, "connected", name)

	gs := state.NewGameState("Filtered", time.Now())
	gs.ID = gameID
	require.NoError(t, hub.Publish(ctx, events.StateUpdated(*gs)))
	require.NoError(t, hub.Publish(ctx, events.Saved(gameID, gameID, "Only this", time.Now())))

	name, data := readEvent(t, rd)
	assert.Equal(t, string(events.EventTypeGameSaved), name)
	assert.Contains(t, data, `"name":"Only this"`)
}

func TestEventsHandler_Keepalive(t *testing.T) {
	prev := keepaliveInterval
	keepaliveInterval = 20 * time.Millisecond
	t.Cleanup(func() { keepaliveInterval = prev })

	srv := httptest.NewServer(NewEventsHandler(events.NewHub(), testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/games/"+uuid.NewString(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	readEvent(t, rd)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": keepalive\n", line)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	h := NewEventsHandler(events.Nop{}, testLogger())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"wrong method", http.MethodPost, "/v1/events/games/" + uuid.NewString(), http.StatusMethodNotAllowed},
		{"bad path", http.MethodGet, "/v1/events/players/" + uuid.NewString(), http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/events/games/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, tt.method, tt.path, nil)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
