// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points ConfigDir at a temp dir and clears SHYFT_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SHYFT_CONFIG_DIR", dir)
	for _, name := range []string{
		"SHYFT_SERVER_URL", "SHYFT_TIMEOUT", "SHYFT_TOP_K", "SHYFT_SEMANTIC_WEIGHT",
		"SHYFT_KEYWORD_WEIGHT", "SHYFT_LOG_LEVEL", "SHYFT_LOG_FILE", "SHYFT_HISTORY",
	} {
		t.Setenv(name, "")
	}
	// Keep a stray ./.env in the package dir from leaking in
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefault_MatchesBackendDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 300, cfg.Search.SnippetLength)
	assert.Equal(t, []string{".pdf", ".html"}, cfg.Watch.Extensions)
	assert.NoError(t, cfg.Validate())
}

func TestDefault_SearchCacheOff(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.Server.SearchCacheTTLSecs)
	assert.Zero(t, cfg.SearchCacheTTL())
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, 60*time.Second, cfg.Timeout())
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	data := `
[server]
url = "http://rag.internal:9000/"
timeout_secs = 5

[search]
top_k = 8
semantic_weight = 0.5
keyword_weight = 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://rag.internal:9000", cfg.Server.URL, "trailing slash trimmed")
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
	// Untouched sections keep defaults
	assert.Equal(t, 300, cfg.Search.SnippetLength)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"search":{"top_k":3}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.TopK)
}

func TestLoad_BrokenFileFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\nurl="), 0600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[search]\nsemantic_weight = 1.5\n"), 0600))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.semantic_weight")
}

func TestLoad_DotEnvAndEnvOverrides(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SHYFT_TOP_K=7\nSHYFT_SERVER_URL=http://from-dotenv:8000\n"), 0600))
	// Real environment beats .env
	t.Setenv("SHYFT_SERVER_URL", "http://from-env:8000")
	os.Unsetenv("SHYFT_TOP_K")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000", cfg.Server.URL)
	assert.Equal(t, 7, cfg.Search.TopK)
	os.Unsetenv("SHYFT_TOP_K")
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SHYFT_SEMANTIC_WEIGHT", "0.9")
	t.Setenv("SHYFT_KEYWORD_WEIGHT", "0.4")
	t.Setenv("SHYFT_HISTORY", "false")
	t.Setenv("SHYFT_TIMEOUT", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 0.9, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.4, cfg.Search.KeywordWeight, "weights are not normalized")
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 60, cfg.Server.TimeoutSecs, "bad value ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty url", func(c *Config) { c.Server.URL = "" }, "server.url"},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://host" }, "server.url"},
		{"top_k zero", func(c *Config) { c.Search.TopK = 0 }, "search.top_k"},
		{"negative weight", func(c *Config) { c.Search.KeywordWeight = -0.1 }, "search.keyword_weight"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"extension", func(c *Config) { c.Watch.Extensions = []string{"pdf"} }, "watch.extensions"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestSaveTOML_RoundTripAndPermissions(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Search.TopK = 9
	cfg.Watch.Extensions = []string{".pdf"}

	require.NoError(t, Save(cfg))

	path := filepath.Join(dir, "config.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Search.TopK)
	assert.Equal(t, []string{".pdf"}, loaded.Watch.Extensions)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("search.top_k")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	require.NoError(t, cfg.Set("search.top_k", "12"))
	require.NoError(t, cfg.Set("search.semantic-weight", "0.25"))
	require.NoError(t, cfg.Set("ui.show_scores", "no"))
	require.NoError(t, cfg.Set("watch.extensions", ".pdf, .html, .md"))
	require.NoError(t, cfg.Set("server.timeout_secs", 15))

	assert.Equal(t, 12, cfg.Search.TopK)
	assert.Equal(t, 0.25, cfg.Search.SemanticWeight)
	assert.False(t, cfg.UI.ShowScores)
	assert.Equal(t, []string{".pdf", ".html", ".md"}, cfg.Watch.Extensions)
	assert.Equal(t, 15, cfg.Server.TimeoutSecs)

	_, err = cfg.Get("search")
	assert.Error(t, err, "sections are not values")
	assert.Error(t, cfg.Set("search.nope", "1"))
	assert.Error(t, cfg.Set("search.top_k", "many"))
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "server.url")
	assert.Contains(t, keys, "search.keyword_weight")
	assert.Contains(t, keys, "watch.extensions")
	assert.NotContains(t, keys, "search")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestClone_DoesNotShareSlices(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Watch.Extensions[0] = ".txt"
	assert.Equal(t, ".pdf", cfg.Watch.Extensions[0])
}

func TestResolvedPaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryPath())
	assert.Equal(t, filepath.Join(dir, "logs", "shyft.log"), cfg.LogPath())
	assert.True(t, strings.HasPrefix(cfg.WatchStatePath(), dir))

	cfg.History.Path = "/tmp/other.db"
	assert.Equal(t, "/tmp/other.db", cfg.HistoryPath())
}

// TestConfig_ConcurrentAccess checks Global/SetGlobal under the race detector.
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Search.TopK = 3
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)
	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
