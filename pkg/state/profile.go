package state

import (
	"fmt"

	"github.com/jwebster45206/d20"
)

// Profile attribute keys.
const (
	AttrNarrative = "narrative"
	AttrCharacter = "character"
	AttrWorld     = "world"
)

var resolveByDifficulty = map[Difficulty]int{
	DifficultyEasy:   20,
	DifficultyNormal: 15,
	DifficultyHard:   10,
	DifficultyExpert: 6,
}

// ProfileView is the JSON form of an impact profile.
type ProfileView struct {
	GameID     string         `json:"game_id"`
	Resolve    int            `json:"resolve"`
	Guard      int            `json:"guard"`
	Attributes map[string]int `json:"attributes"`
}

// ImpactProfile builds an actor whose attributes are the summed impact
// scores of every recorded choice. Hit points stand for the player's resolve
// and follow the difficulty; armor class grows by one per three choices.
func ImpactProfile(gs *GameState) (*d20.Actor, error) {
	if gs == nil {
		return nil, fmt.Errorf("game state is required")
	}
	attrs := map[string]int{AttrNarrative: 0, AttrCharacter: 0, AttrWorld: 0}
	for _, c := range gs.PlayerChoices {
		attrs[AttrNarrative] += c.Impact.Narrative
		attrs[AttrCharacter] += c.Impact.Character
		attrs[AttrWorld] += c.Impact.World
	}

	hp, ok := resolveByDifficulty[gs.Difficulty]
	if !ok {
		hp = resolveByDifficulty[DifficultyNormal]
	}

	actor, err := d20.NewActor(gs.ID).
		WithHP(hp).
		WithAC(10 + len(gs.PlayerChoices)/3).
		WithAttributes(attrs).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build profile actor: %w", err)
	}
	return actor, nil
}

// NewProfileView renders the actor returned by ImpactProfile.
func NewProfileView(gameID string, a *d20.Actor) ProfileView {
	attrs := make(map[string]int, 3)
	for _, k := range []string{AttrNarrative, AttrCharacter, AttrWorld} {
		if v, ok := a.Attribute(k); ok {
			attrs[k] = v
		}
	}
	return ProfileView{
		GameID:     gameID,
		Resolve:    a.MaxHP(),
		Guard:      a.AC(),
		Attributes: attrs,
	}
}
