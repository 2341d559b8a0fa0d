package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := &Profile{Mode: "dev", Port: 28090}
		require.NoError(t, p.Validate())
		assert.Equal(t, "dev", p.Mode)
	})

	t.Run("unknown mode becomes demo", func(t *testing.T) {
		p := &Profile{Mode: "staging"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "prod", Driver: "postgres"}
		assert.Error(t, p.Validate())
	})

	t.Run("unknown driver rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql"}
		assert.Error(t, p.Validate())
	})

	t.Run("epsilon out of bounds reset", func(t *testing.T) {
		p := &Profile{Mode: "dev", InitialEpsilon: 0.9}
		require.NoError(t, p.Validate())
		assert.Equal(t, 0.3, p.InitialEpsilon)
	})

	t.Run("invalid port", func(t *testing.T) {
		p := &Profile{Mode: "dev", Port: 70000}
		assert.Error(t, p.Validate())
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GRIDSENSE_LLM_PROVIDER", "deepseek")
	t.Setenv("GRIDSENSE_LLM_API_KEY", "sk-test")
	t.Setenv("GRIDSENSE_INITIAL_EPSILON", "0.2")
	t.Setenv("GRIDSENSE_AUTO_LEARN", "false")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.True(t, p.IsGenerationEnabled())
	assert.Equal(t, 0.2, p.InitialEpsilon)
	assert.False(t, p.AutoLearn)
}
