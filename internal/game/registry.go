package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwebster45206/storyforge/internal/events"
	"github.com/jwebster45206/storyforge/pkg/saves"
	"github.com/jwebster45206/storyforge/pkg/state"
)

// StartRequest describes a new game. StoryID is ignored in ai mode.
type StartRequest struct {
	StoryID string     `json:"storyId"`
	Mode    state.Mode `json:"mode"`
	Name    string     `json:"name,omitempty"`
}

// Registry holds the live sessions by game id. A session is re-keyed when
// its game id changes (restart or load).
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
	unsubs   map[*Session]func()
}

func NewRegistry(deps Deps) *Registry {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Session),
		unsubs:   make(map[*Session]func()),
	}
}

// Create starts a new game and registers its session.
func (r *Registry) Create(ctx context.Context, req StartRequest) (*Session, error) {
	mode, err := state.ParseMode(string(req.Mode))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, req.Mode)
	}

	sess := r.track(NewSession(r.deps))
	switch mode {
	case state.ModeAI:
		err = sess.StartAI(ctx)
	default:
		err = sess.StartStory(ctx, req.StoryID, mode)
	}
	if err != nil {
		r.drop(sess)
		return nil, err
	}

	if req.Name != "" {
		sess.mu.Lock()
		sess.store.Rename(req.Name)
		sess.mu.Unlock()
	}
	return sess, nil
}

// Get returns the session for a game id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Resume loads a save into a session, reusing the live session for that
// game when there is one.
func (r *Registry) Resume(ctx context.Context, saveID string) (*Session, error) {
	if r.deps.Saves == nil {
		return nil, saves.ErrNotFound
	}
	gs, err := r.deps.Saves.Load(ctx, saveID)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, fmt.Errorf("%w: %s", saves.ErrNotFound, saveID)
	}

	sess, ok := r.Get(gs.ID)
	if !ok {
		sess = r.track(NewSession(r.deps))
	}
	if err := sess.Load(gs); err != nil {
		if !ok {
			r.drop(sess)
		}
		return nil, fmt.Errorf("%w: %v", saves.ErrInvalidSave, err)
	}
	return sess, nil
}

// Remove forgets the session for id.
func (r *Registry) Remove(id string) bool {
	sess, ok := r.Get(id)
	if !ok {
		return false
	}
	r.drop(sess)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// track subscribes to sess so that state changes are broadcast and the
// session is (re)registered under its current game id.
func (r *Registry) track(sess *Session) *Session {
	var key string
	unsub := sess.Subscribe(func(gs state.GameState) {
		if gs.ID != key {
			r.mu.Lock()
			if key != "" && r.sessions[key] == sess {
				delete(r.sessions, key)
			}
			r.sessions[gs.ID] = sess
			r.mu.Unlock()
			r.gauge()
			key = gs.ID
		}
		sess.publish(events.StateUpdated(gs))
	})

	r.mu.Lock()
	r.unsubs[sess] = unsub
	r.mu.Unlock()
	return sess
}

func (r *Registry) drop(sess *Session) {
	r.mu.Lock()
	for id, s := range r.sessions {
		if s == sess {
			delete(r.sessions, id)
		}
	}
	unsub := r.unsubs[sess]
	delete(r.unsubs, sess)
	r.mu.Unlock()

	if unsub != nil {
		sess.mu.Lock()
		unsub()
		sess.mu.Unlock()
	}
	r.gauge()
}

func (r *Registry) gauge() {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ActiveSessions.Set(float64(r.Len()))
	}
}
