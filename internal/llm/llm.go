// Package llm wraps the external text-completion engines used to generate
// scenes. A ModelLoader tracks which model is loaded and guards the single
// in-flight generation; Engine implementations talk to Ollama or to any
// OpenAI-compatible server.
package llm

import (
	"context"
	"errors"
	"math"

	"github.com/jwebster45206/storyforge/pkg/chat"
)

var (
	// ErrUnavailable means no model is loaded or the engine is not configured.
	ErrUnavailable = errors.New("no model loaded")
	// ErrGenerationFailed wraps any runtime error from the engine.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrUnknownModel means the id is not in the available model list.
	ErrUnknownModel = errors.New("unknown model")
	// ErrGenerationInProgress is returned when a generation is already running.
	ErrGenerationInProgress = errors.New("generation already in progress")
)

// Sampling settings used for every scene request.
const (
	Temperature float32 = 0.8
	MaxTokens           = 300
)

// ModelConfig describes a model the player may load.
type ModelConfig struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          string `json:"size"`
	Description   string `json:"description"`
	EngineModel   string `json:"engineModel"`
	ContextLength int    `json:"contextLength"`
}

// AvailableModels lists the selectable models. EngineModel is the name the
// backing server knows the model by.
var AvailableModels = []ModelConfig{
	{
		ID:            "phi-3-mini",
		Name:          "Phi-3 Mini",
		Size:          "~1.8GB",
		Description:   "Fast and high-quality, best for most users",
		EngineModel:   "phi3:mini",
		ContextLength: 4096,
	},
	{
		ID:            "qwen2-0.5b",
		Name:          "Qwen2 0.5B",
		Size:          "~400MB",
		Description:   "Ultra-fast, good for slower devices",
		EngineModel:   "qwen2:0.5b",
		ContextLength: 32768,
	},
}

// FindModel looks up a model by id.
func FindModel(models []ModelConfig, id string) (ModelConfig, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// LoadingProgress reports a model download or warm-up.
type LoadingProgress struct {
	Loaded           int64  `json:"loaded"`
	Total            int64  `json:"total"`
	Percent          int    `json:"percent"`
	Stage            string `json:"stage"`
	TimeRemainingSec *int   `json:"timeRemaining,omitempty"`
}

// Generator produces free text for a single-turn user prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ready() bool
}

// Loader manages the model lifecycle on top of Generator.
type Loader interface {
	Generator
	Load(ctx context.Context, modelID string, progress func(LoadingProgress)) error
	Unload(ctx context.Context) error
	LoadedModel() (ModelConfig, bool)
	Progress() *LoadingProgress
	LastError() error
	Available() []ModelConfig
}

// Engine is a backend capable of preparing and running a model.
type Engine interface {
	// Prepare makes the named model ready, downloading it if needed.
	Prepare(ctx context.Context, engineModel string, progress func(LoadingProgress)) error
	Complete(ctx context.Context, engineModel string, messages []chat.ChatMessage, opts chat.Options) (*chat.ChatResponse, error)
	Name() string
}

func percentOf(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(loaded) * 100 / float64(total)))
	if p > 100 {
		p = 100
	}
	return p
}
