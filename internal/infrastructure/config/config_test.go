package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.AI.LocalTimeout)
	assert.Equal(t, 30*time.Second, cfg.AI.HealthTimeout)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, time.Second, cfg.DedupWindow)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 100, cfg.Queue.MaxSize)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AI_PROVIDER", "llmstudio")
	t.Setenv("AI_URL", "http://192.168.0.81:1234")
	t.Setenv("AI_MODEL", "qwen2.5-7b")
	t.Setenv("AI_LOCAL_TIMEOUT", "90s")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ProviderLLMStudio, cfg.AI.Provider)
	assert.Equal(t, "http://192.168.0.81:1234", cfg.AI.URL)
	assert.Equal(t, "qwen2.5-7b", cfg.AI.Model)
	assert.Equal(t, 90*time.Second, cfg.AI.LocalTimeout)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown provider": {"AI_PROVIDER": "claude"},
		"unknown store":    {"STORE_DRIVER": "mongo"},
		"sql without dsn":  {"STORE_DRIVER": "postgres"},
		"short jwt secret": {"JWT_SECRET": "short"},
		"bad rate limit":   {"RATE_LIMIT_REQUESTS": "0"},
		"no queue workers": {"QUEUE_WORKERS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadAIConfigRereadsEnvironment(t *testing.T) {
	t.Setenv("AI_API_KEY", "first-key")
	first, err := LoadAIConfig()
	require.NoError(t, err)
	assert.Equal(t, "first-key", first.APIKey)

	t.Setenv("AI_API_KEY", "second-key")
	second, err := LoadAIConfig()
	require.NoError(t, err)
	assert.Equal(t, "second-key", second.APIKey)
}

func TestLoadAIConfigAppliesEnvironment(t *testing.T) {
	t.Setenv("AI_PROVIDER", ProviderLLMStudio)
	t.Setenv("AI_URL", "http://127.0.0.1:1234")
	t.Setenv("AI_API_KEY", "local-key")
	t.Setenv("AI_MODEL", "qwen2.5-7b")
	t.Setenv("AI_LOCAL_TIMEOUT", "45s")

	ai, err := LoadAIConfig()
	require.NoError(t, err)
	assert.Equal(t, ProviderLLMStudio, ai.Provider)
	assert.Equal(t, "http://127.0.0.1:1234", ai.URL)
	assert.Equal(t, "local-key", ai.APIKey)
	assert.Equal(t, "qwen2.5-7b", ai.Model)
	assert.Equal(t, 45*time.Second, ai.LocalTimeout)
	assert.Equal(t, 30*time.Second, ai.HealthTimeout, "unset keys keep defaults")
}
