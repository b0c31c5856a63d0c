// Package catalog is the read-only registry of authored stories.
package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/storyforge/pkg/story"
)

//go:embed stories/*.yaml
var embedded embed.FS

// Catalog indexes stories by id. It is immutable after construction and safe
// for concurrent use.
type Catalog struct {
	stories map[string]*story.Story
	order   []string
}

// Default returns the catalog of stories shipped with the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "stories")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every *.yaml file at the root of fsys as one story.
func Load(fsys fs.FS) (*Catalog, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list story files: %w", err)
	}
	sort.Strings(files)

	stories := make([]*story.Story, 0, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		s, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path.Base(name), err)
		}
		stories = append(stories, s)
	}
	return New(stories...)
}

// Decode strictly parses one YAML story document.
func Decode(data []byte) (*story.Story, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s story.Story
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// New builds a catalog from stories, rejecting structurally broken ones.
// Choices that point at scenes missing from the story are allowed; see BrokenLinks.
func New(stories ...*story.Story) (*Catalog, error) {
	c := &Catalog{stories: make(map[string]*story.Story, len(stories))}
	for _, s := range stories {
		if err := Check(s); err != nil {
			return nil, err
		}
		if _, dup := c.stories[s.ID]; dup {
			return nil, fmt.Errorf("duplicate story id %q", s.ID)
		}
		c.stories[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c, nil
}

// Check validates the structure of a single story.
func Check(s *story.Story) error {
	if s == nil {
		return errors.New("nil story")
	}
	if s.ID == "" {
		return errors.New("story id is required")
	}
	if len(s.Scenes) == 0 {
		return fmt.Errorf("story %q has no scenes", s.ID)
	}
	if _, ok := s.Scenes[s.StartSceneID]; !ok {
		return fmt.Errorf("story %q: start scene %q not found", s.ID, s.StartSceneID)
	}
	for key, scene := range s.Scenes {
		if scene == nil {
			return fmt.Errorf("story %q: scene %q is empty", s.ID, key)
		}
		if scene.ID != key {
			return fmt.Errorf("story %q: scene key %q does not match scene id %q", s.ID, key, scene.ID)
		}
		seen := make(map[string]bool, len(scene.Choices))
		for _, ch := range scene.Choices {
			if ch.ID == "" {
				return fmt.Errorf("story %q: scene %q has a choice without an id", s.ID, key)
			}
			if seen[ch.ID] {
				return fmt.Errorf("story %q: scene %q has duplicate choice id %q", s.ID, key, ch.ID)
			}
			seen[ch.ID] = true
		}
		for _, e := range scene.Entities {
			if !e.Type.Valid() {
				return fmt.Errorf("story %q: scene %q entity %q has unknown type %q", s.ID, key, e.ID, e.Type)
			}
		}
	}
	return nil
}

// BrokenLink is a choice whose target scene does not exist in its story.
type BrokenLink struct {
	SceneID  string
	ChoiceID string
	Target   string
}

// BrokenLinks lists dangling choice targets, sorted by scene then choice.
func BrokenLinks(s *story.Story) []BrokenLink {
	var links []BrokenLink
	for id, scene := range s.Scenes {
		for _, ch := range scene.Choices {
			if ch.NextSceneID == "" {
				continue
			}
			if _, ok := s.Scenes[ch.NextSceneID]; !ok {
				links = append(links, BrokenLink{SceneID: id, ChoiceID: ch.ID, Target: ch.NextSceneID})
			}
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].SceneID != links[j].SceneID {
			return links[i].SceneID < links[j].SceneID
		}
		return links[i].ChoiceID < links[j].ChoiceID
	})
	return links
}

// Get returns the story with the given id.
func (c *Catalog) Get(id string) (*story.Story, bool) {
	s, ok := c.stories[id]
	return s, ok
}

// Scene returns a scene of a story. Either id being unknown reports false.
func (c *Catalog) Scene(storyID, sceneID string) (*story.Scene, bool) {
	s, ok := c.stories[storyID]
	if !ok {
		return nil, false
	}
	scene, ok := s.Scenes[sceneID]
	return scene, ok
}

// List returns all stories in load order. The slice is a fresh copy.
func (c *Catalog) List() []*story.Story {
	out := make([]*story.Story, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.stories[id])
	}
	return out
}

// Summary is the list form of a story.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	TotalScenes int    `json:"totalScenes"`
}

// Metadata summarizes a story without its scenes.
func (c *Catalog) Metadata(storyID string) (Summary, bool) {
	s, ok := c.stories[storyID]
	if !ok {
		return Summary{}, false
	}
	return Summary{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Genre:       s.Genre,
		TotalScenes: len(s.Scenes),
	}, true
}

// Len returns the number of stories.
func (c *Catalog) Len() int {
	return len(c.order)
}
