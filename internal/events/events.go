package events

import (
	"context"
	"sync"
	"time"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/story"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeGameStateUpdated EventType = "game.state_updated"
	EventTypeSceneGenerated   EventType = "game.scene_generated"
	EventTypeGameSaved        EventType = "game.saved"
)

// Event is the payload sent to subscribers of a game.
type Event struct {
	Type      EventType      `json:"type"`
	GameID    string         `json:"game_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus delivers game events to SSE subscribers.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events for gameID. The channel is closed
	// after cancel is called or ctx ends.
	Subscribe(ctx context.Context, gameID string) (events <-chan Event, cancel func(), err error)
}

// Channel is the pub/sub channel name for a game.
func Channel(gameID string) string {
	return "game-events:" + gameID
}

// StateUpdated describes a game state change.
func StateUpdated(gs state.GameState) Event {
	data := map[string]any{
		"name":           gs.Name,
		"choices_made":   gs.GameProgress.ChoicesMade,
		"scenes_visited": gs.GameProgress.ScenesVisited,
	}
	if gs.CurrentScene != nil {
		data["scene_id"] = gs.CurrentScene.ID
		data["scene_title"] = gs.CurrentScene.Title
	}
	return Event{Type: EventTypeGameStateUpdated, GameID: gs.ID, Data: data, Timestamp: gs.UpdatedAt}
}

// SceneGenerated announces a scene produced by the language model.
func SceneGenerated(gameID string, scene *story.Scene, now time.Time) Event {
	return Event{
		Type:   EventTypeSceneGenerated,
		GameID: gameID,
		Data: map[string]any{
			"scene_id": scene.ID,
			"title":    scene.Title,
		},
		Timestamp: now,
	}
}

// Saved announces a persisted save.
func Saved(gameID, saveID, name string, now time.Time) Event {
	return Event{
		Type:   EventTypeGameSaved,
		GameID: gameID,
		Data: map[string]any{
			"save_id": saveID,
			"name":    name,
		},
		Timestamp: now,
	}
}

// Nop discards events and never delivers any.
type Nop struct{}

func (Nop) Publish(ctx context.Context, event Event) error { return nil }

func (Nop) Subscribe(ctx context.Context, gameID string) (<-chan Event, func(), error) {
	ch := make(chan Event)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		close(ch)
	}()
	return ch, cancel, nil
}
