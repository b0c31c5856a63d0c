// Package walker traverses the scene graph of a catalog story.
package walker

import (
	"math"
	"sort"

	"github.com/jwebster45206/storyforge/pkg/story"
)

// MinutesPerScene is the reading time assumed for each unvisited scene.
const MinutesPerScene = 2

// Catalog is the subset of the story catalog the walker needs.
type Catalog interface {
	Get(id string) (*story.Story, bool)
	Scene(storyID, sceneID string) (*story.Scene, bool)
}

// Snapshot is the serializable form of a walker.
type Snapshot struct {
	StoryID       string   `json:"storyId"`
	VisitedScenes []string `json:"visitedScenes"`
}

// StoryMetadata summarizes the story being walked.
type StoryMetadata struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Genre         string `json:"genre"`
	TotalScenes   int    `json:"totalScenes"`
	VisitedScenes int    `json:"visitedScenes"`
	Progress      int    `json:"progress"`
}

// Walker tracks one playthrough of a story. It is not safe for concurrent use.
type Walker struct {
	catalog Catalog
	storyID string
	visited map[string]struct{}
}

func New(catalog Catalog) *Walker {
	return &Walker{
		catalog: catalog,
		visited: make(map[string]struct{}),
	}
}

// StoryID returns the id of the story being walked, or "" before Start.
func (w *Walker) StoryID() string {
	return w.storyID
}

// Start begins the story, clearing any previous progress. It reports false
// when the story or its start scene is unknown.
func (w *Walker) Start(storyID string) (*story.Scene, bool) {
	w.visited = make(map[string]struct{})
	w.storyID = storyID

	s, ok := w.catalog.Get(storyID)
	if !ok {
		return nil, false
	}
	scene, ok := w.catalog.Scene(storyID, s.StartSceneID)
	if !ok {
		return nil, false
	}
	w.visited[scene.ID] = struct{}{}
	return scene, true
}

// Advance follows a choice. It reports false for terminal choices and for
// choices that point at scenes the story does not have.
func (w *Walker) Advance(choice story.Choice) (*story.Scene, bool) {
	if choice.NextSceneID == "" {
		return nil, false
	}
	scene, ok := w.catalog.Scene(w.storyID, choice.NextSceneID)
	if !ok {
		return nil, false
	}
	w.visited[scene.ID] = struct{}{}
	return scene, true
}

// SceneByID looks up a scene of the current story without visiting it.
func (w *Walker) SceneByID(sceneID string) (*story.Scene, bool) {
	return w.catalog.Scene(w.storyID, sceneID)
}

func (w *Walker) HasVisited(sceneID string) bool {
	_, ok := w.visited[sceneID]
	return ok
}

// IsEnding reports whether scene closes the playthrough.
func (w *Walker) IsEnding(scene *story.Scene) bool {
	return scene.IsEnding()
}

// ProgressPercent is the share of the story's scenes visited so far, rounded
// to the nearest integer.
func (w *Walker) ProgressPercent() int {
	s, ok := w.catalog.Get(w.storyID)
	if !ok || len(s.Scenes) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(w.visited)) / float64(len(s.Scenes))))
}

// EstimatedRemainingMinutes estimates reading time for scenes not yet visited.
func (w *Walker) EstimatedRemainingMinutes() int {
	s, ok := w.catalog.Get(w.storyID)
	if !ok {
		return 0
	}
	remaining := len(s.Scenes) - len(w.visited)
	if remaining < 0 {
		remaining = 0
	}
	return remaining * MinutesPerScene
}

// Metadata describes the current story, or nil when none is active.
func (w *Walker) Metadata() *StoryMetadata {
	s, ok := w.catalog.Get(w.storyID)
	if !ok {
		return nil
	}
	return &StoryMetadata{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Genre:         s.Genre,
		TotalScenes:   len(s.Scenes),
		VisitedScenes: len(w.visited),
		Progress:      w.ProgressPercent(),
	}
}

// Snapshot captures the walker state. Visited scenes are sorted so equal
// walkers produce equal snapshots.
func (w *Walker) Snapshot() Snapshot {
	visited := make([]string, 0, len(w.visited))
	for id := range w.visited {
		visited = append(visited, id)
	}
	sort.Strings(visited)
	return Snapshot{StoryID: w.storyID, VisitedScenes: visited}
}

// Restore replaces the walker state with snap.
func (w *Walker) Restore(snap Snapshot) {
	w.storyID = snap.StoryID
	w.visited = make(map[string]struct{}, len(snap.VisitedScenes))
	for _, id := range snap.VisitedScenes {
		w.visited[id] = struct{}{}
	}
}
