package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finresearch/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "openai/gpt-oss-120b", cfg.LLM.Smart.Model)
	assert.Equal(t, 0.2, cfg.LLM.Smart.Temperature)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Fast.Model)
	assert.Equal(t, 0.1, cfg.LLM.Fast.Temperature)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Web.MaxResults)
	assert.Equal(t, "news", cfg.Web.Topic)
	assert.Equal(t, "Yahoo Finance", cfg.Market.SourceName)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadRequiresKeyForProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	t.Setenv("LLM_PROVIDER", "cohere")
	_, err = Load()
	require.Error(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, []string{"NVIDIA", "AMD", "Microsoft"}, c.EntityNames())
	assert.Equal(t, []int{2024, 2025}, c.AllYears())
	assert.True(t, c.HasYear(2025))
	assert.False(t, c.HasYear(2023))
}

func TestCatalogTickersIn(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, []string{"MSFT"}, c.TickersIn("What is Microsoft's current stock price?"))
	assert.Equal(t, []string{"NVDA", "AMD"}, c.TickersIn("Compare AMD and Nvidia (NVDA) over 6 months"))
	assert.Empty(t, c.TickersIn("How is the weather in Paris?"))
}

func TestCatalogCanonicalEntity(t *testing.T) {
	c := DefaultCatalog()

	name, ok := c.CanonicalEntity("msft")
	assert.True(t, ok)
	assert.Equal(t, "Microsoft", name)

	name, ok = c.CanonicalEntity(" Nvidia ")
	assert.True(t, ok)
	assert.Equal(t, "NVIDIA", name)

	_, ok = c.CanonicalEntity("Intel")
	assert.False(t, ok)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entities:
  - name: Apple
    ticker: AAPL
    aliases: [Apple, " AAPL "]
years: [2023]
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, c.TickersIn("apple earnings"))
	assert.Equal(t, []string{"apple", "aapl"}, c.Entities[0].Aliases)

	_, err = ParseCatalog([]byte("entities: []\nyears: [2024]\n"))
	assert.Error(t, err)
}
