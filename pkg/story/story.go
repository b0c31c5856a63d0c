package story

// RestartChoiceID is the choice id an ending scene uses to offer a fresh playthrough.
const RestartChoiceID = "new-game"

// Story is an authored, self-contained scene graph with one entry point.
type Story struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description" yaml:"description"`
	Genre        string            `json:"genre" yaml:"genre"`
	StartSceneID string            `json:"startSceneId" yaml:"start_scene_id"`
	Scenes       map[string]*Scene `json:"scenes" yaml:"scenes"`
}

// Scene is a node in the story graph. Scenes are never mutated once built;
// advancing replaces the current scene with another one.
type Scene struct {
	ID       string            `json:"id" yaml:"id"`
	Title    string            `json:"title" yaml:"title"`
	Content  string            `json:"content" yaml:"content"`
	Choices  []Choice          `json:"choices" yaml:"choices"`
	Entities []EntityReference `json:"entities" yaml:"entities"`
	Metadata SceneMetadata     `json:"metadata" yaml:"metadata"`
}

// Choice is an outgoing edge. An empty NextSceneID marks a terminal edge.
type Choice struct {
	ID          string `json:"id" yaml:"id"`
	Text        string `json:"text" yaml:"text"`
	Consequence string `json:"consequence" yaml:"consequence"`
	NextSceneID string `json:"nextSceneId,omitempty" yaml:"next_scene_id,omitempty"`
	Impact      Impact `json:"impact" yaml:"impact"`
}

// Impact scores how strongly a choice moves the story along each axis.
type Impact struct {
	Narrative int `json:"narrative" yaml:"narrative"`
	Character int `json:"character" yaml:"character"`
	World     int `json:"world" yaml:"world"`
}

type EntityType string

const (
	EntityCharacter EntityType = "character"
	EntityLocation  EntityType = "location"
	EntityItem      EntityType = "item"
	EntityConcept   EntityType = "concept"
	EntitySystem    EntityType = "system"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityCharacter, EntityLocation, EntityItem, EntityConcept, EntitySystem:
		return true
	}
	return false
}

// EntityReference tags a scene with something that should carry across turns.
type EntityReference struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Type       EntityType     `json:"type" yaml:"type"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type SceneMetadata struct {
	Genre             string   `json:"genre" yaml:"genre"`
	Tone              string   `json:"tone" yaml:"tone"`
	Themes            []string `json:"themes" yaml:"themes"`
	EstimatedReadTime int      `json:"estimatedReadTime" yaml:"estimated_read_time"`
	AIGenerated       bool     `json:"aiGenerated,omitempty" yaml:"ai_generated,omitempty"`
}

// Choice returns the choice with the given id.
func (s *Scene) Choice(id string) (Choice, bool) {
	if s == nil {
		return Choice{}, false
	}
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// IsEnding reports whether the scene closes a playthrough: it offers exactly
// one choice, and that choice either leads nowhere or asks for a restart.
func (s *Scene) IsEnding() bool {
	if s == nil || len(s.Choices) != 1 {
		return false
	}
	c := s.Choices[0]
	return c.NextSceneID == "" || c.ID == RestartChoiceID
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	out := *s
	if s.Choices != nil {
		out.Choices = append([]Choice{}, s.Choices...)
	}
	if s.Entities != nil {
		out.Entities = make([]EntityReference, len(s.Entities))
		for i, e := range s.Entities {
			out.Entities[i] = e
			if e.Properties != nil {
				out.Entities[i].Properties = cloneValue(e.Properties).(map[string]any)
			}
		}
	}
	if s.Metadata.Themes != nil {
		out.Metadata.Themes = append([]string{}, s.Metadata.Themes...)
	}
	return &out
}

// cloneValue copies the maps and slices a decoded property can hold.
// Other values are immutable or copied by assignment.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
