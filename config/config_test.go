package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.perplexity.ai", cfg.DeepSearch.BaseURL)
	assert.Equal(t, "sonar-pro", cfg.DeepSearch.Model)
	assert.Equal(t, 2000, cfg.DeepSearch.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.DeepSearch.Timeout)
	assert.Equal(t, "extended", cfg.Video.Mode)
	assert.Equal(t, 5000, cfg.Video.Summary.MaxChars)
	assert.Equal(t, 10*time.Minute, cfg.Video.Whisper.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Scholar.ArxivInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "researchdesk:", cfg.Redis.KeyPrefix)
	assert.Zero(t, cfg.Workflow.DispatchTimeout)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PERPLEXITY_API_KEY", "pplx-test")
	t.Setenv("YOUTUBE_API_KEY", "yt-test")
	t.Setenv("NEWSAPI_KEY", "news-test")
	t.Setenv("ENABLE_WHISPER_FALLBACK", "1")
	t.Setenv("RESEARCHDESK_VIDEO_MODE", "Simple")
	t.Setenv("RESEARCHDESK_WORKFLOW_DISPATCH_TIMEOUT", "45s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "pplx-test", cfg.DeepSearch.APIKey)
	assert.Equal(t, "yt-test", cfg.Video.APIKey)
	assert.Equal(t, "news-test", cfg.Scholar.NewsAPIKey)
	assert.True(t, cfg.Video.Whisper.Enabled)
	assert.Equal(t, "simple", cfg.Video.Mode)
	assert.Equal(t, 45*time.Second, cfg.Workflow.DispatchTimeout)
}

func TestLoadConfig_PrefixedKeyWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PERPLEXITY_API_KEY", "plain")
	t.Setenv("RESEARCHDESK_DEEPSEARCH_API_KEY", "prefixed")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.DeepSearch.APIKey)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	content := `
server:
  addr: ":9090"
redis:
  addr: "localhost:6379"
  key_prefix: "rd"
scholar:
  arxiv_max_results: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "rd:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 8, cfg.Scholar.ArxivMaxResults)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NEWS_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("NEWS_API_KEY", "")
	os.Unsetenv("NEWS_API_KEY")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Scholar.NewsAPIKey)
	os.Unsetenv("NEWS_API_KEY")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := LoadConfig("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	bad := *cfg
	bad.Video.Mode = "verbose"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.DeepSearch.TopP = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Workflow.DispatchTimeout = -time.Second
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Video.Whisper.Enabled = true
	bad.Video.Whisper.Workers = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Video.Whisper.Enabled = true
	bad.Video.Whisper.Timeout = 0
	assert.Error(t, bad.Validate())
}
