package narrative

import (
	"strings"

	"github.com/jwebster45206/storyforge/pkg/story"
)

// EntitySet accumulates tags across a playthrough to keep generated scenes
// consistent with earlier ones.
type EntitySet struct {
	Characters []string `json:"characters"`
	Locations  []string `json:"locations"`
	Themes     []string `json:"themes"`
}

type keyword struct {
	tag   string
	words []string
}

var (
	characterWords = []keyword{
		{"companion", []string{"companion", "ally"}},
		{"enemy", []string{"enemy", "foe"}},
		{"merchant", []string{"merchant", "trader"}},
	}
	locationWords = []keyword{
		{"forest", []string{"forest", "woods"}},
		{"castle", []string{"castle", "fortress"}},
		{"village", []string{"village", "town"}},
		{"mountain", []string{"mountain", "peak"}},
	}
	themeWords = []keyword{
		{"magic", []string{"magic", "spell"}},
		{"danger", []string{"danger", "threat"}},
		{"treasure", []string{"treasure", "gold"}},
	}
)

// ExtractEntities scans a scene's content for a fixed keyword vocabulary.
// Matching is a case-insensitive substring test. Themes always include
// "adventure".
func ExtractEntities(scene *story.Scene) EntitySet {
	set := EntitySet{
		Characters: []string{},
		Locations:  []string{},
		Themes:     []string{"adventure"},
	}
	if scene == nil {
		return set
	}
	content := strings.ToLower(scene.Content)
	set.Characters = appendMatches(set.Characters, content, characterWords)
	set.Locations = appendMatches(set.Locations, content, locationWords)
	set.Themes = appendMatches(set.Themes, content, themeWords)
	return set
}

func appendMatches(dst []string, content string, vocab []keyword) []string {
	for _, k := range vocab {
		for _, w := range k.words {
			if strings.Contains(content, w) {
				dst = append(dst, k.tag)
				break
			}
		}
	}
	return dst
}

// Union merges other into s, keeping first-seen order and dropping duplicates.
func (s EntitySet) Union(other EntitySet) EntitySet {
	return EntitySet{
		Characters: union(s.Characters, other.Characters),
		Locations:  union(s.Locations, other.Locations),
		Themes:     union(s.Themes, other.Themes),
	}
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
