package llm

import (
	"context"
	"sync"
)

// MockGenerator is a Loader for tests. It starts ready with the first
// available model loaded unless SetNotReady is called.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
	LoadFunc     func(ctx context.Context, modelID string, progress func(LoadingProgress)) error

	// Track calls for testing
	GenerateCalls []string
	LoadCalls     []string
	UnloadCalls   int

	loaded *ModelConfig
	err    error

	mu sync.Mutex // protects all fields above
}

func NewMockGenerator() *MockGenerator {
	m := AvailableModels[0]
	return &MockGenerator{loaded: &m}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls = append(m.GenerateCalls, prompt)

	if m.loaded == nil {
		return "", ErrUnavailable
	}
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}

	return "Title: Mock Scene\n\nA mock passage of story.\n\nChoices:\n1. Go left\n2. Go right\n3. Wait", nil
}

func (m *MockGenerator) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded != nil
}

func (m *MockGenerator) Load(ctx context.Context, modelID string, progress func(LoadingProgress)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadCalls = append(m.LoadCalls, modelID)

	cfg, ok := FindModel(AvailableModels, modelID)
	if !ok {
		return ErrUnknownModel
	}
	if m.LoadFunc != nil {
		if err := m.LoadFunc(ctx, modelID, progress); err != nil {
			m.err = err
			return err
		}
	}
	if progress != nil {
		progress(LoadingProgress{Loaded: 100, Total: 100, Percent: 100, Stage: "Model ready"})
	}
	m.loaded = &cfg
	m.err = nil
	return nil
}

func (m *MockGenerator) Unload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnloadCalls++
	m.loaded = nil
	return nil
}

func (m *MockGenerator) LoadedModel() (ModelConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded == nil {
		return ModelConfig{}, false
	}
	return *m.loaded, true
}

func (m *MockGenerator) Progress() *LoadingProgress { return nil }

func (m *MockGenerator) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockGenerator) Available() []ModelConfig {
	out := make([]ModelConfig, len(AvailableModels))
	copy(out, AvailableModels)
	return out
}

// SetNotReady makes the mock behave as if no model is loaded.
func (m *MockGenerator) SetNotReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = nil
}

// SetResponse makes Generate return text.
func (m *MockGenerator) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return text, nil
	}
}

// SetGenerateError makes Generate fail with err.
func (m *MockGenerator) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", err
	}
}

// Calls returns a copy of the prompts passed to Generate.
func (m *MockGenerator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.GenerateCalls))
	copy(out, m.GenerateCalls)
	return out
}
