package modelgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	t.Run("provider and model", func(t *testing.T) {
		name, err := ParseName("anthropic/claude-sonnet-4-5")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", name.Provider)
		assert.Equal(t, "claude-sonnet-4-5", name.Model)
		assert.Equal(t, "anthropic/claude-sonnet-4-5", name.String())
	})

	t.Run("model name may contain slashes", func(t *testing.T) {
		name, err := ParseName("together/meta-llama/Llama-3-70b")
		require.NoError(t, err)
		assert.Equal(t, "together", name.Provider)
		assert.Equal(t, "meta-llama/Llama-3-70b", name.Model)
	})

	t.Run("missing provider", func(t *testing.T) {
		_, err := ParseName("gpt-4o")
		assert.ErrorContains(t, err, "provider/model-name")
	})

	t.Run("empty without fallback", func(t *testing.T) {
		t.Setenv(EnvModel, "")
		_, err := ParseName("")
		assert.ErrorContains(t, err, EnvModel)
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv(EnvModel, "openai/gpt-4o")
		name, err := ParseName("")
		require.NoError(t, err)
		assert.Equal(t, "openai/gpt-4o", name.String())
	})

	t.Run("environment fallback takes first of list", func(t *testing.T) {
		t.Setenv(EnvModel, "openai/gpt-4o, anthropic/claude-sonnet-4-5")
		name, err := ParseName("")
		require.NoError(t, err)
		assert.Equal(t, "openai/gpt-4o", name.String())
	})

	t.Run("explicit name beats environment", func(t *testing.T) {
		t.Setenv(EnvModel, "openai/gpt-4o")
		name, err := ParseName("mock/test")
		require.NoError(t, err)
		assert.Equal(t, "mock/test", name.String())
	})
}
