package inference

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/pkg/llm"
	"github.com/curax/triage/prompts"
)

// fakeCompleter returns canned text per model id, or an error for models in
// its failure set.
type fakeCompleter struct {
	mu           sync.Mutex
	texts        map[string]string
	failing      map[string]bool
	calls        []string
	lastSys      string
	lastUser     string
	lastSampling llm.Sampling
}

func (f *fakeCompleter) Complete(_ context.Context, modelID, systemPrompt, userPrompt string, sampling llm.Sampling) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, modelID)
	f.lastSys = systemPrompt
	f.lastUser = userPrompt
	f.lastSampling = sampling
	if f.failing[modelID] {
		return "", errors.New("model backend down")
	}
	if text, ok := f.texts[modelID]; ok {
		return text, nil
	}
	return "generic answer", nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRouter(t *testing.T, completer llm.Completer, opts Options) (*Router, *model.Registry, *prompts.FlowConfig) {
	t.Helper()
	cfg, err := prompts.Load("")
	require.NoError(t, err)
	registry := model.FromSeeds(cfg.Models)
	router, err := NewRouter(registry, completer, cfg.SystemPrompts, cfg.Disclaimer, opts)
	require.NoError(t, err)
	return router, registry, cfg
}

func TestInferHappyPath(t *testing.T) {
	fake := &fakeCompleter{texts: map[string]string{
		"medical-llm-v1": "You likely have a tension headache. This is not a replacement for professional care.",
	}}
	router, _, _ := newTestRouter(t, fake, Options{})

	resp, err := router.Infer(context.Background(), &Request{
		Prompt:   "I have a headache",
		TaskType: TaskDiagnosis,
		ModelID:  "medical-llm-v1",
	})
	require.NoError(t, err)
	require.Equal(t, "medical-llm-v1", resp.ModelUsed)
	require.Greater(t, resp.Confidence, 0.0)
	require.LessOrEqual(t, resp.Confidence, 1.0)
	require.Equal(t, (len(resp.Text)+3)/4, resp.TokensUsed)
	require.InDelta(t, float64(resp.TokensUsed)*0.001, resp.Cost, 1e-9)
	require.Contains(t, fake.lastSys, "preliminary analysis of symptoms")
}

func TestInferDefaultSamplingFillsZeroFields(t *testing.T) {
	fake := &fakeCompleter{}
	router, registry, _ := newTestRouter(t, fake, Options{
		DefaultSampling: llm.Sampling{MaxTokens: 2000, Temperature: 0.3},
	})
	registry.Put(&model.Model{ID: "bare-model", Available: true})

	_, err := router.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
		ModelID:  "bare-model",
	})
	require.NoError(t, err)
	require.Equal(t, 2000, fake.lastSampling.MaxTokens)
	require.InDelta(t, 0.3, float64(fake.lastSampling.Temperature), 1e-6)
}

func TestInferCatalogSamplingBeatsDefaults(t *testing.T) {
	fake := &fakeCompleter{}
	router, _, _ := newTestRouter(t, fake, Options{
		DefaultSampling: llm.Sampling{MaxTokens: 2000, Temperature: 0.9},
	})

	_, err := router.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
		ModelID:  "medical-llm-v1",
	})
	require.NoError(t, err)
	require.Equal(t, 4000, fake.lastSampling.MaxTokens)
	require.InDelta(t, 0.3, float64(fake.lastSampling.Temperature), 1e-6)
}

func TestInferModelNotFound(t *testing.T) {
	fake := &fakeCompleter{}
	router, _, _ := newTestRouter(t, fake, Options{})

	_, err := router.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
		ModelID:  "no-such-model",
	})
	require.Equal(t, ErrorModelNotFound, CodeOf(err))
	require.Equal(t, 0, fake.callCount(), "completion must not be invoked for unknown models")
}

func TestInferModelUnavailable(t *testing.T) {
	fake := &fakeCompleter{}
	router, registry, _ := newTestRouter(t, fake, Options{})
	require.NoError(t, registry.SetAvailable("medical-llm-v1", false))

	_, err := router.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
		ModelID:  "medical-llm-v1",
	})
	require.Equal(t, ErrorModelUnavailable, CodeOf(err))
	require.Equal(t, 0, fake.callCount())
}

func TestInferCompletionFailure(t *testing.T) {
	fake := &fakeCompleter{failing: map[string]bool{"medical-llm-v1": true}}
	router, _, _ := newTestRouter(t, fake, Options{})

	_, err := router.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
		ModelID:  "medical-llm-v1",
	})
	require.Equal(t, ErrorCompletionFailed, CodeOf(err))
	require.Equal(t, 1, fake.callCount(), "single-model infer must not retry")
}

func TestInferUnknownTaskFallsBackToChat(t *testing.T) {
	fake := &fakeCompleter{}
	router, _, cfg := newTestRouter(t, fake, Options{})

	_, err := router.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskType("astrology"),
		ModelID:  "medical-llm-v1",
	})
	require.NoError(t, err)
	require.Equal(t, cfg.SystemPrompts["chat"], fake.lastSys)
}

func TestInferBuildsUserPromptWithContextAndPatientData(t *testing.T) {
	fake := &fakeCompleter{}
	router, _, _ := newTestRouter(t, fake, Options{})

	_, err := router.Infer(context.Background(), &Request{
		Prompt:      "assess my symptoms",
		Context:     "patient reports chest tightness",
		TaskType:    TaskChat,
		PatientData: map[string]any{"age": 41},
		ModelID:     "medical-llm-v1",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(fake.lastUser, "Context: patient reports chest tightness"))
	require.Contains(t, fake.lastUser, "assess my symptoms")
	require.Contains(t, fake.lastUser, `"age": 41`)
}

func TestInferRejectsEmptyPrompt(t *testing.T) {
	fake := &fakeCompleter{}
	router, _, _ := newTestRouter(t, fake, Options{})

	_, err := router.Infer(context.Background(), &Request{TaskType: TaskChat, ModelID: "medical-llm-v1"})
	require.Equal(t, ErrorInvalidRequest, CodeOf(err))
}
