package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/story"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected closed channel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "game-1")
	require.NoError(t, err)
	defer cancel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Publish(ctx, Saved("game-1", "save-9", "Checkpoint", now)))
	require.NoError(t, b.Publish(ctx, Saved("game-2", "save-x", "Other", now)))

	ev := receive(t, ch)
	assert.Equal(t, EventTypeGameSaved, ev.Type)
	assert.Equal(t, "game-1", ev.GameID)
	assert.Equal(t, "save-9", ev.Data["save_id"])
	assert.True(t, ev.Timestamp.Equal(now))

	cancel()
	assertClosed(t, ch)
}

func TestHub_DeliversPerGame(t *testing.T) {
	h := NewHub()
	ctx, stop := context.WithCancel(context.Background())

	a, cancelA, _ := h.Subscribe(ctx, "a")
	b, cancelB, _ := h.Subscribe(context.Background(), "b")
	defer cancelB()

	gs := state.NewGameState("Hero", time.Now())
	gs.ID = "a"
	gs.CurrentScene = &story.Scene{ID: "forest-arrival", Title: "The Enchanted Forest"}
	require.NoError(t, h.Publish(ctx, StateUpdated(*gs)))

	ev := receive(t, a)
	assert.Equal(t, EventTypeGameStateUpdated, ev.Type)
	assert.Equal(t, "forest-arrival", ev.Data["scene_id"])

	select {
	case <-b:
		t.Fatal("game b should not see game a events")
	default:
	}

	stop()
	assertClosed(t, a)
	cancelA()
}

func TestNop_SubscribeClosesOnCancel(t *testing.T) {
	var n Nop
	require.NoError(t, n.Publish(context.Background(), Event{GameID: "x"}))

	ch, cancel, err := n.Subscribe(context.Background(), "x")
	require.NoError(t, err)
	cancel()
	cancel()
	assertClosed(t, ch)
}

func TestSceneGenerated(t *testing.T) {
	ev := SceneGenerated("g", &story.Scene{ID: "ai-scene-1-1", Title: "Ember Road"}, time.Unix(0, 0))
	assert.Equal(t, EventTypeSceneGenerated, ev.Type)
	assert.Equal(t, "Ember Road", ev.Data["title"])
	assert.Equal(t, "game-events:g", Channel("g"))
}
