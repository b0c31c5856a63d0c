// Package narrative turns language-model text into scenes and builds the
// prompts that ask for them.
package narrative

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jwebster45206/storyforge/pkg/story"
)

const (
	ChoicesPerScene = 3

	DefaultTitle       = "Untitled Scene"
	DefaultContent     = "The story continues..."
	ParsedConsequence  = "Your choice shapes the story..."
	FallbackChoiceText = "Continue forward"
	FallbackConseq     = "The adventure continues..."
	NarratorEntityID   = "ai-narrator"
	NarratorEntityName = "AI Narrator"
)

var (
	ParsedImpact   = story.Impact{Narrative: 7, Character: 5, World: 6}
	FallbackImpact = story.Impact{Narrative: 5, Character: 3, World: 4}
)

var (
	titleLine     = regexp.MustCompile(`(?im)^[ \t*#]*title:[ \t]*(.*)$`)
	choicesMarker = regexp.MustCompile(`(?im)^[ \t*#]*choices?:\**`)
	choiceLine    = regexp.MustCompile(`^\s*[1-3\-*]\.\s*(.+)`)
)

// Parser converts free text into a Scene. It never fails: every field that
// cannot be extracted falls back to a fixed default.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// ParseScene parses text with a default Parser.
func ParseScene(text string) *story.Scene {
	return NewParser().Parse(text)
}

func (p *Parser) Parse(text string) *story.Scene {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	sceneID := nextSceneID(p.now())

	title, bodyStart := parseTitle(text)
	body, choicesBlock := splitChoices(text[bodyStart:])

	return &story.Scene{
		ID:      sceneID,
		Title:   title,
		Content: wrapParagraph(body),
		Choices: normalizeChoices(parseChoices(choicesBlock, sceneID), sceneID),
		Entities: []story.EntityReference{{
			ID:         NarratorEntityID,
			Name:       NarratorEntityName,
			Type:       story.EntitySystem,
			Properties: map[string]any{"aiGenerated": true},
		}},
		Metadata: story.SceneMetadata{
			Genre:             "fantasy",
			Tone:              "adventurous",
			Themes:            []string{"ai-generated", "dynamic"},
			EstimatedReadTime: 2,
			AIGenerated:       true,
		},
	}
}

// parseTitle returns the title and the offset where the body begins. With no
// title line the body starts at the top of the text.
func parseTitle(text string) (string, int) {
	loc := titleLine.FindStringSubmatchIndex(text)
	if loc == nil {
		return DefaultTitle, 0
	}
	title := strings.Trim(strings.TrimSpace(text[loc[2]:loc[3]]), "*# ")
	if title == "" {
		title = DefaultTitle
	}
	return title, loc[1]
}

// splitChoices separates the body from the text after the choices marker.
// Without a marker the whole text is body and there are no choices.
func splitChoices(text string) (body, choices string) {
	loc := choicesMarker.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(text[:loc[0]]), text[loc[1]:]
}

func wrapParagraph(body string) string {
	if body == "" {
		body = DefaultContent
	}
	if strings.HasPrefix(body, "<p>") {
		return body
	}
	return "<p>" + body + "</p>"
}

func parseChoices(block, sceneID string) []story.Choice {
	var choices []story.Choice
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := choiceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		n := len(choices) + 1
		choices = append(choices, story.Choice{
			ID:          fmt.Sprintf("ai-choice-%d", n),
			Text:        text,
			Consequence: ParsedConsequence,
			NextSceneID: fmt.Sprintf("%s-%d", sceneID, n),
			Impact:      ParsedImpact,
		})
	}
	return choices
}

// normalizeChoices pads with fallback choices or truncates so exactly
// ChoicesPerScene remain.
func normalizeChoices(choices []story.Choice, sceneID string) []story.Choice {
	if len(choices) > ChoicesPerScene {
		return choices[:ChoicesPerScene]
	}
	for len(choices) < ChoicesPerScene {
		n := len(choices) + 1
		choices = append(choices, fallbackChoice(n, sceneID))
	}
	return choices
}

func fallbackChoice(n int, sceneID string) story.Choice {
	return story.Choice{
		ID:          fmt.Sprintf("ai-choice-fallback-%d", n),
		Text:        FallbackChoiceText,
		Consequence: FallbackConseq,
		NextSceneID: fmt.Sprintf("%s-fallback-%d", sceneID, n),
		Impact:      FallbackImpact,
	}
}
