package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/jwebster45206/storyforge/pkg/chat"
)

// OllamaEngine runs models on an Ollama server.
type OllamaEngine struct {
	client  *api.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewOllamaEngine creates an engine for the server at baseURL. Requests are
// bounded by timeout; model pulls are bounded only by the caller's context.
func NewOllamaEngine(baseURL string, timeout time.Duration, logger *slog.Logger) (*OllamaEngine, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
	}

	return &OllamaEngine{
		client:  api.NewClient(u, &http.Client{}),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (e *OllamaEngine) Name() string { return "ollama" }

// Prepare pulls the model unless the server already has it.
func (e *OllamaEngine) Prepare(ctx context.Context, model string, progress func(LoadingProgress)) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama is not reachable: %w", err)
	}

	present, err := e.hasModel(ctx, model)
	if err != nil {
		return err
	}
	if present {
		e.logger.Info("Model already available", "model", model)
		progress(LoadingProgress{Loaded: 100, Total: 100, Percent: 100, Stage: "Model ready"})
		return nil
	}

	e.logger.Info("Model not found, pulling it", "model", model)
	start := time.Now()
	stream := true
	err = e.client.Pull(ctx, &api.PullRequest{Model: model, Stream: &stream}, func(r api.ProgressResponse) error {
		p := LoadingProgress{
			Loaded:  r.Completed,
			Total:   r.Total,
			Percent: percentOf(r.Completed, r.Total),
			Stage:   r.Status,
		}
		if eta, ok := remaining(time.Since(start), r.Completed, r.Total); ok {
			p.TimeRemainingSec = &eta
		}
		progress(p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", model, err)
	}
	return nil
}

func (e *OllamaEngine) hasModel(ctx context.Context, model string) (bool, error) {
	list, err := e.client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list ollama models: %w", err)
	}
	for _, m := range list.Models {
		if m.Name == model || m.Model == model {
			return true, nil
		}
	}
	return false, nil
}

// Complete runs a non-streaming chat request.
func (e *OllamaEngine) Complete(ctx context.Context, model string, messages []chat.ChatMessage, opts chat.Options) (*chat.ChatResponse, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}

	var resp api.ChatResponse
	if err := e.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil, fmt.Errorf("empty response from %s", model)
	}

	return &chat.ChatResponse{
		Message:          resp.Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

// remaining estimates seconds left from the average rate so far.
func remaining(elapsed time.Duration, done, total int64) (int, bool) {
	if done <= 0 || total <= done || elapsed <= 0 {
		return 0, false
	}
	rate := float64(done) / elapsed.Seconds()
	return int(float64(total-done) / rate), true
}
