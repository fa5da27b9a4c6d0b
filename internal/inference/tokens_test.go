package inference

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"abcdefgh", 2},
	}
	for _, tt := range tests {
		require.Equalf(t, tt.want, EstimateTokens(tt.text), "text %q", tt.text)
	}
}

func TestConfidenceEstimatorDeterministicAndBounded(t *testing.T) {
	e := HeuristicEstimator{}

	short := e.Estimate("ok", TaskChat)
	long := e.Estimate(string(make([]byte, 300)), TaskChat)
	require.Equal(t, short, e.Estimate("ok", TaskChat))
	require.GreaterOrEqual(t, short, 0.7)
	require.LessOrEqual(t, long, 0.95)
	require.Greater(t, long, short)
}
