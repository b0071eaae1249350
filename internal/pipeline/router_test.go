package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Route(t *testing.T) {
	r := NewRouter(map[string]int{"agents": 1, "ollama": 2}, "agents")

	v, name, err := r.Route("ollama")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, "ollama", name)

	v, name, err = r.Route("unknown")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, "agents", name)

	assert.True(t, r.Has("ollama"))
	assert.False(t, r.Has("unknown"))
	assert.Equal(t, []string{"agents", "ollama"}, r.Engines())
}

func TestRouter_NoFallback(t *testing.T) {
	r := NewRouter(map[string]int{"openai": 1}, "agents")
	_, _, err := r.Route("ollama")
	assert.ErrorContains(t, err, `"ollama"`)
}
