package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/storyforge/internal/metrics"
	"github.com/jwebster45206/storyforge/pkg/chat"
)

type fakeEngine struct {
	mu          sync.Mutex
	prepareErr  error
	completeErr error
	reply       string
	block       chan struct{}
	started     chan struct{}

	prepared []string
	messages [][]chat.ChatMessage
	opts     []chat.Options
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Prepare(ctx context.Context, model string, progress func(LoadingProgress)) error {
	f.mu.Lock()
	f.prepared = append(f.prepared, model)
	f.mu.Unlock()
	progress(LoadingProgress{Loaded: 50, Total: 100, Percent: 50, Stage: "Downloading"})
	return f.prepareErr
}

func (f *fakeEngine) Complete(ctx context.Context, model string, messages []chat.ChatMessage, opts chat.Options) (*chat.ChatResponse, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages)
	f.opts = append(f.opts, opts)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &chat.ChatResponse{Message: f.reply}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedCounter(n int) TokenCounter {
	return func(string) int { return n }
}

func TestModelLoader_LoadUnknownModel(t *testing.T) {
	l := NewModelLoader(&fakeEngine{}, quietLogger(), WithTokenCounter(fixedCounter(1)))
	err := l.Load(context.Background(), "gpt-9", nil)
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.False(t, l.Ready())
}

func TestModelLoader_NoEngine(t *testing.T) {
	l := NewModelLoader(nil, quietLogger())
	assert.False(t, l.Ready())

	_, err := l.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = l.Load(context.Background(), "phi-3-mini", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestModelLoader_LoadReportsProgress(t *testing.T) {
	engine := &fakeEngine{reply: "ok"}
	l := NewModelLoader(engine, quietLogger(), WithTokenCounter(fixedCounter(1)))

	var seen []LoadingProgress
	require.NoError(t, l.Load(context.Background(), "qwen2-0.5b", func(p LoadingProgress) {
		seen = append(seen, p)
	}))

	require.Len(t, seen, 1)
	assert.Equal(t, 50, seen[0].Percent)
	assert.Equal(t, []string{"qwen2:0.5b"}, engine.prepared)
	assert.True(t, l.Ready())
	assert.Nil(t, l.Progress())

	cfg, ok := l.LoadedModel()
	require.True(t, ok)
	assert.Equal(t, "qwen2-0.5b", cfg.ID)
}

func TestModelLoader_LoadFailureKeepsError(t *testing.T) {
	boom := errors.New("disk full")
	l := NewModelLoader(&fakeEngine{prepareErr: boom}, quietLogger(), WithTokenCounter(fixedCounter(1)))

	err := l.Load(context.Background(), "phi-3-mini", nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, l.LastError(), boom)
	assert.False(t, l.Ready())
	assert.Nil(t, l.Progress())
}

func TestModelLoader_GenerateSendsSingleUserTurn(t *testing.T) {
	engine := &fakeEngine{reply: "Title: Dawn"}
	m := metrics.New()
	l := NewModelLoader(engine, quietLogger(), WithTokenCounter(fixedCounter(10)), WithMetrics(m))
	require.NoError(t, l.Load(context.Background(), "phi-3-mini", nil))

	text, err := l.Generate(context.Background(), "Write a scene")
	require.NoError(t, err)
	assert.Equal(t, "Title: Dawn", text)

	require.Len(t, engine.messages, 1)
	assert.Equal(t, []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Write a scene"}}, engine.messages[0])
	assert.Equal(t, chat.Options{Temperature: 0.8, MaxTokens: 300}, engine.opts[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("phi-3-mini", "success")))
}

func TestModelLoader_GenerateWrapsEngineErrors(t *testing.T) {
	boom := errors.New("cuda out of memory")
	l := NewModelLoader(&fakeEngine{completeErr: boom}, quietLogger(), WithTokenCounter(fixedCounter(10)))
	require.NoError(t, l.Load(context.Background(), "phi-3-mini", nil))

	_, err := l.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, boom)
}

func TestModelLoader_RejectsOversizedPrompt(t *testing.T) {
	engine := &fakeEngine{reply: "never"}
	l := NewModelLoader(engine, quietLogger(), WithTokenCounter(fixedCounter(4000)))
	require.NoError(t, l.Load(context.Background(), "phi-3-mini", nil))

	_, err := l.Generate(context.Background(), "huge")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, engine.messages)
}

func TestModelLoader_OneGenerationInFlight(t *testing.T) {
	engine := &fakeEngine{reply: "done", block: make(chan struct{}), started: make(chan struct{}, 1)}
	l := NewModelLoader(engine, quietLogger(), WithTokenCounter(fixedCounter(1)))
	require.NoError(t, l.Load(context.Background(), "phi-3-mini", nil))

	errc := make(chan error, 1)
	go func() {
		_, err := l.Generate(context.Background(), "first")
		errc <- err
	}()
	<-engine.started

	_, err := l.Generate(context.Background(), "second")
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	close(engine.block)
	require.NoError(t, <-errc)

	engine.block = nil
	engine.started = nil
	_, err = l.Generate(context.Background(), "third")
	assert.NoError(t, err)
}

func TestModelLoader_Unload(t *testing.T) {
	l := NewModelLoader(&fakeEngine{reply: "x"}, quietLogger(), WithTokenCounter(fixedCounter(1)))
	require.NoError(t, l.Load(context.Background(), "phi-3-mini", nil))
	require.NoError(t, l.Unload(context.Background()))

	assert.False(t, l.Ready())
	_, err := l.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFindModel(t *testing.T) {
	m, ok := FindModel(AvailableModels, "phi-3-mini")
	assert.True(t, ok)
	assert.Equal(t, "Phi-3 Mini", m.Name)

	_, ok = FindModel(AvailableModels, "missing")
	assert.False(t, ok)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 0, percentOf(5, 0))
	assert.Equal(t, 33, percentOf(1, 3))
	assert.Equal(t, 100, percentOf(200, 100))
}
