package narrative

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/storyforge/pkg/chat"
	"github.com/jwebster45206/storyforge/pkg/story"
)

const responseFormat = `RESPONSE FORMAT:
Title: [Scene Title]

[Scene content paragraph]

Choices:
1. [Choice 1]
2. [Choice 2]
3. [Choice 3]`

// OpeningPrompt asks for the first scene of an AI-driven adventure.
const OpeningPrompt = `You are starting a new interactive fantasy adventure. Create an engaging opening scene for the player.

RESPONSE FORMAT:
Title: [Scene Title]

[Opening scene content - 100-200 words in second person]

Choices:
1. [Choice 1]
2. [Choice 2]
3. [Choice 3]`

const sceneRules = `You are a masterful interactive fiction writer creating an immersive fantasy adventure.

RULES:
- Write in second person ("You...")
- Keep the scene to 100-200 words
- Generate exactly 3 meaningful choices
- Maintain story consistency and flow
- Focus on immersive, engaging narrative
- Each choice should lead to different story directions`

// recentChoiceWindow is how many past choices are summarized in a prompt.
const recentChoiceWindow = 3

// PromptBuilder assembles the prompt for the scene that follows a choice.
type PromptBuilder struct {
	choice        *story.Choice
	currentScene  *story.Scene
	history       []story.Choice
	entities      EntitySet
	scenesVisited int
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// WithChoice sets the choice the player just made. Required.
func (b *PromptBuilder) WithChoice(c story.Choice) *PromptBuilder {
	b.choice = &c
	return b
}

func (b *PromptBuilder) WithCurrentScene(s *story.Scene) *PromptBuilder {
	b.currentScene = s
	return b
}

// WithHistory sets the full choice history; only the tail is used.
func (b *PromptBuilder) WithHistory(choices []story.Choice) *PromptBuilder {
	b.history = choices
	return b
}

func (b *PromptBuilder) WithEntities(e EntitySet) *PromptBuilder {
	b.entities = e
	return b
}

func (b *PromptBuilder) WithScenesVisited(n int) *PromptBuilder {
	b.scenesVisited = n
	return b
}

// Build renders the prompt text.
func (b *PromptBuilder) Build() (string, error) {
	if b.choice == nil {
		return "", errors.New("choice is required")
	}

	previous := "Beginning"
	if b.currentScene != nil && b.currentScene.Title != "" {
		previous = b.currentScene.Title
	}

	recent := b.history
	if len(recent) > recentChoiceWindow {
		recent = recent[len(recent)-recentChoiceWindow:]
	}
	recentTexts := make([]string, len(recent))
	for i, c := range recent {
		recentTexts[i] = c.Text
	}

	var sb strings.Builder
	sb.WriteString(sceneRules)
	sb.WriteString("\n\nCURRENT STORY CONTEXT:\n")
	fmt.Fprintf(&sb, "- Player just chose: %q\n", b.choice.Text)
	fmt.Fprintf(&sb, "- Previous scene: %q\n", previous)
	fmt.Fprintf(&sb, "- Recent choices: %s\n", strings.Join(recentTexts, "; "))
	fmt.Fprintf(&sb, "- Themes: %s\n", joinOr(b.entities.Themes, "adventure, mystery"))
	fmt.Fprintf(&sb, "- Characters: %s\n", joinOr(b.entities.Characters, "you"))
	fmt.Fprintf(&sb, "- Locations: %s\n", joinOr(b.entities.Locations, "unknown realm"))
	fmt.Fprintf(&sb, "- Scenes visited: %d\n\n", b.scenesVisited)
	sb.WriteString(responseFormat)
	return sb.String(), nil
}

// BuildMessages renders the prompt as the single user message sent to a model.
func (b *PromptBuilder) BuildMessages() ([]chat.ChatMessage, error) {
	prompt, err := b.Build()
	if err != nil {
		return nil, err
	}
	return UserMessages(prompt), nil
}

// UserMessages wraps a prompt as a one-turn conversation.
func UserMessages(prompt string) []chat.ChatMessage {
	return []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: prompt}}
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
