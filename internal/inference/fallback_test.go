package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackPrimarySucceeds(t *testing.T) {
	fake := &fakeCompleter{texts: map[string]string{"medical-llm-v1": "primary answer"}}
	router, _, cfg := newTestRouter(t, fake, Options{})
	chain := NewFallbackChain(router, cfg.FallbackOrder)

	resp, err := chain.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
	}, "medical-llm-v1", nil)
	require.NoError(t, err)
	require.False(t, resp.WasFallback)
	require.Equal(t, "medical-llm-v1", resp.ModelUsed)
	require.Equal(t, []string{"medical-llm-v1"}, fake.calls)
}

func TestFallbackAdvancesOnFailure(t *testing.T) {
	fake := &fakeCompleter{
		texts:   map[string]string{"medical-llm-v2": "fallback answer"},
		failing: map[string]bool{"medical-llm-v1": true},
	}
	router, _, cfg := newTestRouter(t, fake, Options{})
	chain := NewFallbackChain(router, cfg.FallbackOrder)

	resp, err := chain.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
	}, "medical-llm-v1", nil)
	require.NoError(t, err)
	require.True(t, resp.WasFallback)
	require.Equal(t, "medical-llm-v2", resp.ModelUsed)
	require.Equal(t, []string{"medical-llm-v1", "medical-llm-v2"}, fake.calls)
}

func TestFallbackDampsConfidence(t *testing.T) {
	fake := &fakeCompleter{
		texts:   map[string]string{"medical-llm-v2": "fallback answer"},
		failing: map[string]bool{"medical-llm-v1": true},
	}
	router, _, cfg := newTestRouter(t, fake, Options{
		Estimator: fixedEstimator{scores: map[string]float64{"fallback answer": 0.8}},
	})
	chain := NewFallbackChain(router, cfg.FallbackOrder)

	resp, err := chain.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
	}, "medical-llm-v1", nil)
	require.NoError(t, err)
	require.InDelta(t, 0.8*fallbackDamping, resp.Confidence, 1e-9)
}

func TestFallbackSkipsKnownFailed(t *testing.T) {
	fake := &fakeCompleter{
		texts:   map[string]string{"fallback-model": "last resort"},
		failing: map[string]bool{"medical-llm-v1": true},
	}
	router, _, cfg := newTestRouter(t, fake, Options{})
	chain := NewFallbackChain(router, cfg.FallbackOrder)

	resp, err := chain.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
	}, "medical-llm-v1", []string{"medical-llm-v2"})
	require.NoError(t, err)
	require.Equal(t, "fallback-model", resp.ModelUsed)
	require.NotContains(t, fake.calls, "medical-llm-v2")
}

func TestFallbackUnavailableModelAdvances(t *testing.T) {
	fake := &fakeCompleter{texts: map[string]string{"medical-llm-v2": "alt"}}
	router, registry, cfg := newTestRouter(t, fake, Options{})
	require.NoError(t, registry.SetAvailable("medical-llm-v1", false))
	chain := NewFallbackChain(router, cfg.FallbackOrder)

	resp, err := chain.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
	}, "medical-llm-v1", nil)
	require.NoError(t, err)
	require.True(t, resp.WasFallback)
	require.Equal(t, "medical-llm-v2", resp.ModelUsed)
}

func TestFallbackAllFail(t *testing.T) {
	fake := &fakeCompleter{failing: map[string]bool{
		"medical-llm-v1": true,
		"medical-llm-v2": true,
		"fallback-model": true,
	}}
	router, _, cfg := newTestRouter(t, fake, Options{})
	chain := NewFallbackChain(router, cfg.FallbackOrder)

	_, err := chain.Infer(context.Background(), &Request{
		Prompt:   "hello",
		TaskType: TaskChat,
	}, "medical-llm-v1", nil)
	require.Equal(t, ErrorAllModelsFailed, CodeOf(err))

	// Every candidate tried exactly once, never the same model twice.
	seen := map[string]int{}
	for _, id := range fake.calls {
		seen[id]++
	}
	for id, n := range seen {
		require.Equalf(t, 1, n, "model %s called %d times", id, n)
	}
}
