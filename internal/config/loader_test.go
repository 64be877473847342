package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Embedding.Endpoint = "https://embed.example.com"
	cfg.Embedding.APIKey = "key"
	cfg.LLM.DefaultProvider = "openai"
	cfg.LLM.Providers = map[string]ProviderConfig{
		"openai": {APIKey: "key", Model: "gpt-4o-mini"},
	}
	cfg.Vector.Milvus.Host = "localhost"
	cfg.Vector.Milvus.Collection = "news_chunks"
	cfg.Cache.Redis.Host = "localhost"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingEmbedding(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Endpoint = ""
	cfg.Embedding.APIKey = "  "

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.endpoint")
	assert.Contains(t, err.Error(), "embedding.api_key")
}

func TestValidate_UnknownDefaultProvider(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.DefaultProvider = "missing"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.providers.missing")
}

func TestValidate_ProviderWithoutAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Providers["openai"] = ProviderConfig{Model: "gpt-4o-mini"}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.providers.openai.api_key")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("NEWS_CHAT_TEST_VAR", "from-env")

	assert.Equal(t, "from-env", expandEnv("${NEWS_CHAT_TEST_VAR}"))
	assert.Equal(t, "from-env", expandEnv("${NEWS_CHAT_TEST_VAR:fallback}"))
	assert.Equal(t, "fallback", expandEnv("${NEWS_CHAT_TEST_UNSET:fallback}"))
	// 无默认值且未定义时原样保留，便于暴露配置缺失
	assert.Equal(t, "${NEWS_CHAT_TEST_UNSET}", expandEnv("${NEWS_CHAT_TEST_UNSET}"))
	assert.Equal(t, "host: from-env", expandEnv("host: ${NEWS_CHAT_TEST_VAR}"))
}
