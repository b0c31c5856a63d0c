package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/storyforge/internal/metrics"
	"github.com/jwebster45206/storyforge/pkg/chat"
)

// ModelLoader is the Loader used by the API. It is safe for concurrent use;
// at most one Generate runs at a time.
type ModelLoader struct {
	engine  Engine
	models  []ModelConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	countOnce sync.Once
	count     TokenCounter

	mu       sync.RWMutex
	loaded   *ModelConfig
	progress *LoadingProgress
	lastErr  error

	generating atomic.Bool
}

// LoaderOption customises a ModelLoader.
type LoaderOption func(*ModelLoader)

// WithTokenCounter replaces the tiktoken counter.
func WithTokenCounter(c TokenCounter) LoaderOption {
	return func(l *ModelLoader) { l.count = c }
}

// WithModels replaces AvailableModels.
func WithModels(models []ModelConfig) LoaderOption {
	return func(l *ModelLoader) { l.models = models }
}

// WithMetrics records generation metrics.
func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *ModelLoader) { l.metrics = m }
}

// NewModelLoader creates a loader over engine. A nil engine yields a loader
// that is never ready, which keeps the game usable in template-only mode.
func NewModelLoader(engine Engine, logger *slog.Logger, opts ...LoaderOption) *ModelLoader {
	l := &ModelLoader{
		engine: engine,
		models: AvailableModels,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ModelLoader) Available() []ModelConfig {
	out := make([]ModelConfig, len(l.models))
	copy(out, l.models)
	return out
}

func (l *ModelLoader) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.engine != nil && l.loaded != nil
}

func (l *ModelLoader) LoadedModel() (ModelConfig, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.loaded == nil {
		return ModelConfig{}, false
	}
	return *l.loaded, true
}

// Progress returns the current loading progress, or nil when idle.
func (l *ModelLoader) Progress() *LoadingProgress {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.progress == nil {
		return nil
	}
	p := *l.progress
	return &p
}

func (l *ModelLoader) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

func (l *ModelLoader) setProgress(p *LoadingProgress) {
	l.mu.Lock()
	l.progress = p
	l.mu.Unlock()
}

// Load prepares modelID on the engine and makes it the active model. The
// optional progress callback sees every update the engine reports.
func (l *ModelLoader) Load(ctx context.Context, modelID string, progress func(LoadingProgress)) error {
	cfg, ok := FindModel(l.models, modelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	if l.engine == nil {
		return ErrUnavailable
	}

	l.mu.Lock()
	l.lastErr = nil
	l.progress = &LoadingProgress{Total: 100, Stage: "Initializing..."}
	l.mu.Unlock()

	l.logger.Info("Loading model", "model", cfg.ID, "engine", l.engine.Name(), "engine_model", cfg.EngineModel)
	start := time.Now()

	report := func(p LoadingProgress) {
		l.setProgress(&p)
		if progress != nil {
			progress(p)
		}
	}

	if err := l.engine.Prepare(ctx, cfg.EngineModel, report); err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.progress = nil
		l.mu.Unlock()
		l.logger.Error("Failed to load model", "model", cfg.ID, "error", err)
		return fmt.Errorf("failed to load model %s: %w", cfg.ID, err)
	}

	l.mu.Lock()
	l.loaded = &cfg
	l.progress = nil
	l.mu.Unlock()

	l.logger.Info("Model loaded", "model", cfg.ID, "duration", time.Since(start))
	return nil
}

// Unload forgets the active model. The engine keeps its own copy.
func (l *ModelLoader) Unload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded != nil {
		l.logger.Info("Unloading model", "model", l.loaded.ID)
	}
	l.loaded = nil
	return nil
}

func (l *ModelLoader) tokens(text string) int {
	l.countOnce.Do(func() {
		if l.count == nil {
			l.count = NewTokenCounter(DefaultEncoding)
		}
	})
	return l.count(text)
}

// Generate sends prompt as a single user message to the loaded model.
func (l *ModelLoader) Generate(ctx context.Context, prompt string) (string, error) {
	cfg, ok := l.LoadedModel()
	if !ok || l.engine == nil {
		return "", ErrUnavailable
	}
	if !l.generating.CompareAndSwap(false, true) {
		return "", ErrGenerationInProgress
	}
	defer l.generating.Store(false)

	promptTokens := l.tokens(prompt)
	if l.metrics != nil {
		l.metrics.PromptTokens.WithLabelValues(cfg.ID).Observe(float64(promptTokens))
	}
	if budget := cfg.ContextLength - MaxTokens; cfg.ContextLength > 0 && promptTokens > budget {
		l.observe(cfg.ID, "rejected", 0)
		return "", fmt.Errorf("%w: prompt is %d tokens, budget is %d", ErrGenerationFailed, promptTokens, budget)
	}

	messages := []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: prompt}}
	opts := chat.Options{Temperature: Temperature, MaxTokens: MaxTokens}

	l.logger.Debug("Generating", "model", cfg.ID, "prompt_tokens", promptTokens)
	start := time.Now()
	resp, err := l.engine.Complete(ctx, cfg.EngineModel, messages, opts)
	elapsed := time.Since(start)
	if err != nil {
		l.observe(cfg.ID, "error", elapsed)
		l.logger.Error("Generation failed", "model", cfg.ID, "error", err, "duration", elapsed)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	l.observe(cfg.ID, "success", elapsed)
	l.logger.Debug("Generated", "model", cfg.ID, "duration", elapsed, "chars", len(resp.Message))
	return resp.Message, nil
}

func (l *ModelLoader) observe(model, status string, elapsed time.Duration) {
	if l.metrics == nil {
		return
	}
	l.metrics.GenerationsTotal.WithLabelValues(model, status).Inc()
	if elapsed > 0 {
		l.metrics.GenerationDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	}
}
