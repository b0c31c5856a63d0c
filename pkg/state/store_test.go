package state

import (
	"testing"
	"time"

	"github.com/jwebster45206/storyforge/pkg/story"
	"github.com/jwebster45206/storyforge/pkg/walker"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = clock.now
	s.CreateNewGame("Test Game")
	return s, clock
}

func TestCreateNewGame(t *testing.T) {
	s, _ := newTestStore()
	first := s.Current()

	second := s.CreateNewGame("")
	if second.Name != DefaultGameName {
		t.Errorf("name = %q, want %q", second.Name, DefaultGameName)
	}
	if second.ID == "" || second.ID == first.ID {
		t.Errorf("expected a fresh id, got %q (previous %q)", second.ID, first.ID)
	}
	if second.GameProgress.ChoicesMade != 0 || second.GameProgress.ScenesVisited != 0 {
		t.Errorf("expected zeroed progress, got %+v", second.GameProgress)
	}
	if second.Difficulty != DifficultyNormal {
		t.Errorf("difficulty = %q", second.Difficulty)
	}
	if second.CurrentScene == nil || second.CurrentScene.ID != "intro-1" {
		t.Errorf("expected placeholder scene, got %+v", second.CurrentScene)
	}
}

func TestCreateNewGame_UsesDefaultDifficulty(t *testing.T) {
	s, _ := newTestStore()
	s.SetDefaultDifficulty(DifficultyExpert)
	if gs := s.CreateNewGame("Hard Mode"); gs.Difficulty != DifficultyExpert {
		t.Errorf("difficulty = %q, want expert", gs.Difficulty)
	}
}

func TestRecordChoice_KeepsCountInSync(t *testing.T) {
	s, clock := newTestStore()

	for i := 1; i <= 5; i++ {
		before := s.Current()
		clock.t = clock.t.Add(time.Second)
		s.RecordChoice(story.Choice{ID: "c", Text: "choice"})
		after := s.Current()

		if after.GameProgress.ChoicesMade != before.GameProgress.ChoicesMade+1 {
			t.Fatalf("ChoicesMade went from %d to %d", before.GameProgress.ChoicesMade, after.GameProgress.ChoicesMade)
		}
		if len(after.PlayerChoices) != len(before.PlayerChoices)+1 {
			t.Fatalf("PlayerChoices went from %d to %d", len(before.PlayerChoices), len(after.PlayerChoices))
		}
		if after.GameProgress.ChoicesMade != len(after.PlayerChoices) {
			t.Fatalf("invariant broken: %d != %d", after.GameProgress.ChoicesMade, len(after.PlayerChoices))
		}
		if !after.UpdatedAt.After(before.UpdatedAt) {
			t.Error("UpdatedAt should be refreshed")
		}
	}

	// a progress update must not disturb the choice count
	s.UpdateProgress(ProgressUpdate{ScenesVisited: Int(9)})
	gs := s.Current()
	if gs.GameProgress.ChoicesMade != 5 || gs.GameProgress.ScenesVisited != 9 {
		t.Errorf("unexpected progress %+v", gs.GameProgress)
	}
	if !s.IsInProgress() {
		t.Error("game with choices should be in progress")
	}
}

func TestUpdateProgress_Merges(t *testing.T) {
	s, _ := newTestStore()
	s.UpdateProgress(ProgressUpdate{ScenesVisited: Int(2)})
	s.UpdateProgress(ProgressUpdate{AchievementsUnlocked: []string{"first-steps"}})
	s.UpdateProgress(ProgressUpdate{PlaytimeMinutes: Int(7)})

	p := s.Current().GameProgress
	if p.ScenesVisited != 2 || p.PlaytimeMinutes != 7 {
		t.Errorf("unexpected progress %+v", p)
	}
	if len(p.AchievementsUnlocked) != 1 || p.AchievementsUnlocked[0] != "first-steps" {
		t.Errorf("achievements = %v", p.AchievementsUnlocked)
	}
}

func TestMutationsDoNotLeakIntoCopies(t *testing.T) {
	s, _ := newTestStore()
	s.RecordChoice(story.Choice{ID: "a"})
	snapshot := s.Current()

	s.RecordChoice(story.Choice{ID: "b"})
	snapshot.PlayerChoices[0].ID = "mutated"

	if len(snapshot.PlayerChoices) != 1 {
		t.Errorf("earlier copy changed length to %d", len(snapshot.PlayerChoices))
	}
	if s.Current().PlayerChoices[0].ID != "a" {
		t.Error("mutating a copy changed the store")
	}
}

func TestSetCurrentScene(t *testing.T) {
	s, _ := newTestStore()
	scene := &story.Scene{ID: "forest-arrival", Title: "Into the Unknown"}
	s.SetCurrentScene(scene)
	scene.Title = "changed"

	if got := s.Current().CurrentScene; got.ID != "forest-arrival" || got.Title != "Into the Unknown" {
		t.Errorf("current scene = %+v", got)
	}
}

func TestLoadGame(t *testing.T) {
	s, clock := newTestStore()
	saved := NewGameState("Saved Run", clock.t.Add(-time.Hour))
	saved.PlayerChoices = []story.Choice{{ID: "x"}}
	saved.GameProgress = Progress{ScenesVisited: 3, ChoicesMade: 1, PlaytimeMinutes: 12}
	saved.StoryID = "mysterious-portal"
	saved.Walker = &walker.Snapshot{StoryID: "mysterious-portal", VisitedScenes: []string{"portal-intro"}}

	clock.t = clock.t.Add(time.Minute)
	if err := s.LoadGame(saved); err != nil {
		t.Fatalf("LoadGame() error = %v", err)
	}
	gs := s.Current()
	if gs.ID != saved.ID || gs.Name != "Saved Run" {
		t.Errorf("loaded %q %q", gs.ID, gs.Name)
	}
	if !gs.UpdatedAt.Equal(clock.t) {
		t.Errorf("UpdatedAt = %v, want %v", gs.UpdatedAt, clock.t)
	}
	if gs.Walker == nil || gs.Walker.StoryID != "mysterious-portal" {
		t.Errorf("walker snapshot lost: %+v", gs.Walker)
	}

	clock.t = clock.t.Add(5*time.Minute + 30*time.Second)
	if got := s.TotalPlaytimeMinutes(); got != 17 {
		t.Errorf("TotalPlaytimeMinutes() = %d, want 17", got)
	}
	s.CommitPlaytime()
	if got := s.Current().GameProgress.PlaytimeMinutes; got != 17 {
		t.Errorf("committed playtime = %d, want 17", got)
	}
	if got := s.TotalPlaytimeMinutes(); got != 17 {
		t.Errorf("playtime after commit = %d, want 17", got)
	}
}

func TestLoadGame_Rejects(t *testing.T) {
	s, _ := newTestStore()
	if err := s.LoadGame(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
	if err := s.LoadGame(&GameState{}); err == nil {
		t.Error("expected error for snapshot without id")
	}
	if err := s.LoadGame(&GameState{ID: "x", Difficulty: "impossible"}); err == nil {
		t.Error("expected error for unknown difficulty")
	}
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore()

	var seen []GameState
	unsubscribe := s.Subscribe(func(gs GameState) {
		seen = append(seen, gs)
	})

	s.RecordChoice(story.Choice{ID: "a"})
	s.Rename("Renamed")
	s.SetDifficulty(DifficultyHard)

	if len(seen) != 3 {
		t.Fatalf("observer called %d times, want 3", len(seen))
	}
	if seen[0].GameProgress.ChoicesMade != 1 {
		t.Errorf("first notification has ChoicesMade %d", seen[0].GameProgress.ChoicesMade)
	}
	if seen[1].Name != "Renamed" || seen[2].Difficulty != DifficultyHard {
		t.Errorf("unexpected notifications %+v", seen)
	}

	unsubscribe()
	s.RecordChoice(story.Choice{ID: "b"})
	if len(seen) != 3 {
		t.Error("observer called after unsubscribe")
	}
}

func TestParseDifficultyAndMode(t *testing.T) {
	if d, err := ParseDifficulty(" HARD "); err != nil || d != DifficultyHard {
		t.Errorf("ParseDifficulty = %q, %v", d, err)
	}
	if _, err := ParseDifficulty("legendary"); err == nil {
		t.Error("expected error for unknown difficulty")
	}
	if m, err := ParseMode(""); err != nil || m != ModeTemplate {
		t.Errorf("ParseMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMode("AI-Enhanced"); err != nil || m != ModeAIEnhanced {
		t.Errorf("ParseMode = %q, %v", m, err)
	}
	if _, err := ParseMode("random"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestImpactProfile(t *testing.T) {
	gs := NewGameState("Profile", time.Now())
	gs.Difficulty = DifficultyHard
	gs.PlayerChoices = []story.Choice{
		{ID: "a", Impact: story.Impact{Narrative: 8, Character: 6, World: 7}},
		{ID: "b", Impact: story.Impact{Narrative: 7, Character: 5, World: 6}},
		{ID: "c", Impact: story.Impact{Narrative: 5, Character: 3, World: 4}},
	}

	actor, err := ImpactProfile(gs)
	if err != nil {
		t.Fatalf("ImpactProfile() error = %v", err)
	}
	view := NewProfileView(gs.ID, actor)
	if view.Resolve != 10 {
		t.Errorf("resolve = %d, want 10", view.Resolve)
	}
	if view.Guard != 11 {
		t.Errorf("guard = %d, want 11", view.Guard)
	}
	want := map[string]int{AttrNarrative: 20, AttrCharacter: 14, AttrWorld: 17}
	for k, v := range want {
		if view.Attributes[k] != v {
			t.Errorf("attribute %s = %d, want %d", k, view.Attributes[k], v)
		}
	}
}
