package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimator()

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// ASCII at ~4 chars/token.
	n, err = e.CountTokens(strings.Repeat("a", 40))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// CJK at ~1.5 chars/token.
	n, err = e.CountTokens(strings.Repeat("中", 15))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// Tiny non-empty input still counts as one token.
	n, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistry_PrefixMatchAndFallback(t *testing.T) {
	Register("test-model", NewEstimator())

	tk, err := Get("test-model")
	require.NoError(t, err)
	assert.Equal(t, "estimator", tk.Name())

	tk, err = Get("test-model-32k")
	require.NoError(t, err)
	assert.Equal(t, "estimator", tk.Name())

	_, err = Get("unknown-model")
	assert.Error(t, err)

	// ForModel never fails.
	tk = ForModel("unknown-model")
	assert.Equal(t, "estimator", tk.Name())
}

func TestTiktoken_EncodingSelection(t *testing.T) {
	tests := []struct {
		model    string
		encoding string
	}{
		{"gpt-4o", "tiktoken[o200k_base]"},
		{"gpt-4o-2024-05-13", "tiktoken[o200k_base]"},
		{"gpt-3.5-turbo", "tiktoken[cl100k_base]"},
		{"some-future-model", "tiktoken[cl100k_base]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.encoding, NewTiktoken(tt.model).Name(), "model %s", tt.model)
	}
}
