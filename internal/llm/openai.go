package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/storyforge/pkg/chat"
)

// OpenAIEngine talks to any server implementing the OpenAI chat API
// (llama.cpp server, vLLM, OpenRouter). Such servers cannot download models,
// so Prepare only verifies that the model is served.
type OpenAIEngine struct {
	client *openai.Client
	logger *slog.Logger
}

func NewOpenAIEngine(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Prepare(ctx context.Context, model string, progress func(LoadingProgress)) error {
	progress(LoadingProgress{Total: 100, Stage: "Checking server..."})

	list, err := e.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == model {
			progress(LoadingProgress{Loaded: 100, Total: 100, Percent: 100, Stage: "Model ready"})
			return nil
		}
	}
	return fmt.Errorf("model %s is not served by %s", model, e.Name())
}

func (e *OpenAIEngine) Complete(ctx context.Context, model string, messages []chat.ChatMessage, opts chat.Options) (*chat.ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("empty response from %s", model)
	}

	return &chat.ChatResponse{
		Message:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
