package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/storyforge/pkg/narrative"
	"github.com/jwebster45206/storyforge/pkg/story"
	"github.com/jwebster45206/storyforge/pkg/walker"
)

const DefaultGameName = "New Game"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// ParseDifficulty accepts any casing of a known level.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyExpert:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Mode selects where the next scene comes from.
type Mode string

const (
	ModeTemplate   Mode = "template"    // authored story graph only
	ModeAI         Mode = "ai"          // every scene generated
	ModeAIEnhanced Mode = "ai-enhanced" // authored opening, generated afterwards
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTemplate, ModeAI, ModeAIEnhanced:
		return m, nil
	case "":
		return ModeTemplate, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Progress counts what the player has done in a playthrough.
type Progress struct {
	ScenesVisited        int      `json:"scenesVisited"`
	ChoicesMade          int      `json:"choicesMade"`
	AchievementsUnlocked []string `json:"achievementsUnlocked"`
	PlaytimeMinutes      int      `json:"playtimeMinutes"`
}

// GameState is one playthrough. Values handed out by the Store are copies.
type GameState struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CurrentScene  *story.Scene   `json:"currentScene"`
	PlayerChoices []story.Choice `json:"playerChoices"`
	GameProgress  Progress       `json:"gameProgress"`
	Difficulty    Difficulty     `json:"difficulty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	// Resume information for saves. Absent in saves made by older clients.
	StoryID  string               `json:"storyId,omitempty"`
	Mode     Mode                 `json:"mode,omitempty"`
	Walker   *walker.Snapshot     `json:"walker,omitempty"`
	Entities *narrative.EntitySet `json:"entities,omitempty"`
}

// NewGameState returns a fresh game positioned on a placeholder scene.
func NewGameState(name string, now time.Time) *GameState {
	if strings.TrimSpace(name) == "" {
		name = DefaultGameName
	}
	return &GameState{
		ID:            uuid.NewString(),
		Name:          name,
		CurrentScene:  placeholderScene(),
		PlayerChoices: []story.Choice{},
		GameProgress:  Progress{AchievementsUnlocked: []string{}},
		Difficulty:    DifficultyNormal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func placeholderScene() *story.Scene {
	return &story.Scene{
		ID:       "intro-1",
		Title:    "New Adventure",
		Choices:  []story.Choice{},
		Entities: []story.EntityReference{},
		Metadata: story.SceneMetadata{
			Genre:             "fantasy",
			Tone:              "adventurous",
			Themes:            []string{"discovery"},
			EstimatedReadTime: 1,
		},
	}
}

// Clone returns a deep copy. Nil slices stay nil and empty ones stay empty.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	out := *gs
	out.CurrentScene = gs.CurrentScene.Clone()
	if gs.PlayerChoices != nil {
		out.PlayerChoices = append([]story.Choice{}, gs.PlayerChoices...)
	}
	out.GameProgress.AchievementsUnlocked = cloneStrings(gs.GameProgress.AchievementsUnlocked)
	if gs.Walker != nil {
		w := *gs.Walker
		w.VisitedScenes = cloneStrings(gs.Walker.VisitedScenes)
		out.Walker = &w
	}
	if gs.Entities != nil {
		e := narrative.EntitySet{
			Characters: cloneStrings(gs.Entities.Characters),
			Locations:  cloneStrings(gs.Entities.Locations),
			Themes:     cloneStrings(gs.Entities.Themes),
		}
		out.Entities = &e
	}
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

// InProgress reports whether the player has made at least one choice.
func (gs *GameState) InProgress() bool {
	return len(gs.PlayerChoices) > 0
}

// Validate checks the fields required for a state to be stored or resumed.
func (gs *GameState) Validate() error {
	if gs.ID == "" {
		return fmt.Errorf("game state id is required")
	}
	if gs.Difficulty != "" {
		if _, err := ParseDifficulty(string(gs.Difficulty)); err != nil {
			return err
		}
	}
	return nil
}
