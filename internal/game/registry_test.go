package game

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/internal/events"
	"github.com/jwebster45206/storyforge/pkg/saves"
	"github.com/jwebster45206/storyforge/pkg/state"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry(f.deps)

	sess, err := r.Create(context.Background(), StartRequest{StoryID: "lost-heir", Name: "My Run"})
	require.NoError(t, err)

	got, ok := r.Get(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, "My Run", sess.State().Name)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.ActiveSessions))
}

func TestRegistry_CreateErrors(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry(f.deps)
	ctx := context.Background()

	_, err := r.Create(ctx, StartRequest{StoryID: "mysterious-portal", Mode: "freeform"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = r.Create(ctx, StartRequest{StoryID: "missing"})
	assert.ErrorIs(t, err, ErrStoryNotFound)

	f.gen.SetNotReady()
	_, err = r.Create(ctx, StartRequest{Mode: state.ModeAI})
	assert.Error(t, err)

	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RestartRekeysSession(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry(f.deps)
	ctx := context.Background()

	sess, err := r.Create(ctx, StartRequest{StoryID: "mysterious-portal"})
	require.NoError(t, err)
	oldID := sess.ID()

	_, err = sess.Choose(ctx, "step-through")
	require.NoError(t, err)
	_, err = sess.Choose(ctx, "return-portal")
	require.NoError(t, err)
	out, err := sess.Choose(ctx, "new-game")
	require.NoError(t, err)
	require.True(t, out.Restarted)

	_, ok := r.Get(oldID)
	assert.False(t, ok)
	got, ok := r.Get(out.State.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_PublishesStateUpdates(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry(f.deps)
	ctx := context.Background()

	sess, err := r.Create(ctx, StartRequest{StoryID: "mysterious-portal"})
	require.NoError(t, err)

	sub, cancel, err := f.hub.Subscribe(ctx, sess.ID())
	require.NoError(t, err)
	defer cancel()

	_, err = sess.Choose(ctx, "call-out")
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type != events.EventTypeGameStateUpdated {
				continue
			}
			if ev.Data["scene_id"] == "mysterious-voice" {
				return
			}
		case <-deadline:
			t.Fatal("no state update for the new scene")
		}
	}
}

func TestRegistry_Resume(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry(f.deps)
	ctx := context.Background()

	sess, err := r.Create(ctx, StartRequest{StoryID: "mysterious-portal"})
	require.NoError(t, err)
	_, err = sess.Choose(ctx, "step-through")
	require.NoError(t, err)
	saveID, err := sess.Save(ctx, "")
	require.NoError(t, err)

	// Live session is reused.
	again, err := r.Resume(ctx, saveID)
	require.NoError(t, err)
	assert.Same(t, sess, again)

	require.True(t, r.Remove(sess.ID()))
	assert.Equal(t, 0, r.Len())

	resumed, err := r.Resume(ctx, saveID)
	require.NoError(t, err)
	assert.NotSame(t, sess, resumed)
	assert.Equal(t, "forest-arrival", resumed.State().CurrentScene.ID)
	_, ok := r.Get(saveID)
	assert.True(t, ok)

	_, err = r.Resume(ctx, "no-such-save")
	assert.ErrorIs(t, err, saves.ErrNotFound)
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry(newFixture(t).deps)
	assert.False(t, r.Remove("nope"))
}
