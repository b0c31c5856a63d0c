package state

import (
	"errors"
	"time"

	"github.com/jwebster45206/storyforge/pkg/narrative"
	"github.com/jwebster45206/storyforge/pkg/story"
	"github.com/jwebster45206/storyforge/pkg/walker"
)

// Observer is called after every change with a copy of the new state.
// Observers run synchronously on the mutating goroutine and must not call
// back into the Store.
type Observer func(GameState)

// ProgressUpdate carries the progress fields to merge. Nil fields are left
// unchanged. ChoicesMade is deliberately absent: only RecordChoice moves it.
type ProgressUpdate struct {
	ScenesVisited        *int
	AchievementsUnlocked []string
	PlaytimeMinutes      *int
}

// Int is a helper for building a ProgressUpdate.
func Int(n int) *int { return &n }

// Store holds the single live GameState of a session. Every mutation replaces
// the held value with a new one before observers are told about it.
// A Store is not safe for concurrent use.
type Store struct {
	current      *GameState
	difficulty   Difficulty
	sessionStart time.Time
	observers    map[int]Observer
	nextObserver int
	now          func() time.Time
}

func NewStore() *Store {
	s := &Store{
		difficulty: DifficultyNormal,
		observers:  make(map[int]Observer),
		now:        time.Now,
	}
	s.current = NewGameState("", s.now())
	s.sessionStart = s.now()
	return s
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() { delete(s.observers, id) }
}

// Current returns a copy of the held state.
func (s *Store) Current() *GameState {
	return s.current.Clone()
}

// SetDefaultDifficulty sets the difficulty applied to games created later.
func (s *Store) SetDefaultDifficulty(d Difficulty) {
	s.difficulty = d
}

// CreateNewGame replaces the state with a fresh game.
func (s *Store) CreateNewGame(name string) *GameState {
	gs := NewGameState(name, s.now())
	gs.Difficulty = s.difficulty
	s.sessionStart = s.now()
	s.replace(gs)
	return s.Current()
}

// LoadGame replaces the state wholesale with snapshot.
func (s *Store) LoadGame(snapshot *GameState) error {
	if snapshot == nil {
		return errors.New("snapshot is required")
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	gs := snapshot.Clone()
	if gs.PlayerChoices == nil {
		gs.PlayerChoices = []story.Choice{}
	}
	if gs.GameProgress.AchievementsUnlocked == nil {
		gs.GameProgress.AchievementsUnlocked = []string{}
	}
	if gs.Difficulty == "" {
		gs.Difficulty = DifficultyNormal
	}
	gs.UpdatedAt = s.now()
	s.sessionStart = s.now()
	s.replace(gs)
	return nil
}

// RecordChoice appends to the choice history and counts it. It is the only
// way ChoicesMade changes, so ChoicesMade always equals len(PlayerChoices)
// for games created by this store.
func (s *Store) RecordChoice(choice story.Choice) {
	s.mutate(func(gs *GameState) {
		gs.PlayerChoices = append(gs.PlayerChoices, choice)
		gs.GameProgress.ChoicesMade++
	})
}

func (s *Store) UpdateProgress(u ProgressUpdate) {
	s.mutate(func(gs *GameState) {
		if u.ScenesVisited != nil {
			gs.GameProgress.ScenesVisited = *u.ScenesVisited
		}
		if u.AchievementsUnlocked != nil {
			gs.GameProgress.AchievementsUnlocked = append([]string(nil), u.AchievementsUnlocked...)
		}
		if u.PlaytimeMinutes != nil {
			gs.GameProgress.PlaytimeMinutes = *u.PlaytimeMinutes
		}
	})
}

func (s *Store) SetCurrentScene(scene *story.Scene) {
	s.mutate(func(gs *GameState) {
		gs.CurrentScene = scene.Clone()
	})
}

func (s *Store) Rename(name string) {
	if name == "" {
		name = DefaultGameName
	}
	s.mutate(func(gs *GameState) {
		gs.Name = name
	})
}

func (s *Store) SetDifficulty(d Difficulty) {
	s.mutate(func(gs *GameState) {
		gs.Difficulty = d
	})
}

// SetEngine records what is needed to resume the playthrough from a save.
func (s *Store) SetEngine(storyID string, mode Mode, snap *walker.Snapshot, entities *narrative.EntitySet) {
	s.mutate(func(gs *GameState) {
		gs.StoryID = storyID
		gs.Mode = mode
		gs.Walker = snap
		gs.Entities = entities
	})
}

// IsInProgress reports whether the current game has any recorded choice.
func (s *Store) IsInProgress() bool {
	return s.current.InProgress()
}

// TotalPlaytimeMinutes is the stored playtime plus whole minutes elapsed
// since the game was created or loaded.
func (s *Store) TotalPlaytimeMinutes() int {
	return s.current.GameProgress.PlaytimeMinutes + s.sessionMinutes()
}

// CommitPlaytime folds the running session time into the stored playtime
// and restarts the session clock.
func (s *Store) CommitPlaytime() {
	total := s.TotalPlaytimeMinutes()
	s.sessionStart = s.sessionStart.Add(time.Duration(s.sessionMinutes()) * time.Minute)
	s.UpdateProgress(ProgressUpdate{PlaytimeMinutes: &total})
}

func (s *Store) sessionMinutes() int {
	return int(s.now().Sub(s.sessionStart) / time.Minute)
}

// mutate applies fn to a copy of the current state and swaps it in.
func (s *Store) mutate(fn func(*GameState)) {
	next := s.current.Clone()
	fn(next)
	next.UpdatedAt = s.now()
	s.replace(next)
}

func (s *Store) replace(gs *GameState) {
	s.current = gs
	if len(s.observers) == 0 {
		return
	}
	snapshot := *gs.Clone()
	for _, fn := range s.observers {
		fn(snapshot)
	}
}
