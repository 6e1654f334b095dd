// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// clearCredentialEnv unsets every credential variable so the host environment
// (CI runners export GITHUB_TOKEN, for example) cannot leak into a test.
// t.Setenv registers the restore, the variable is then removed.
func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range RequiredKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func fullCredentials() Credentials {
	return Credentials{
		SentryToken:   "sntrys_token",
		SentryOrg:     "acme",
		SentryProject: "tasks",
		GitHubToken:   "ghp_token",
		GitHubRepo:    "acme/tasks",
		GeminiAPIKey:  "gemini-key",
	}
}

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "sentry_agent.log", cfg.Logger.LogFile)
	assert.Equal(t, "https://sentry.io/api/0", cfg.Sentry.BaseURL)
	assert.Equal(t, "ai-fix-pr-raised", cfg.Sentry.MarkerTag)
	assert.Equal(t, "true", cfg.Sentry.MarkerValue)
	assert.Equal(t, 30*time.Second, cfg.Sentry.Timeout)
	assert.Equal(t, "fix/sentry-", cfg.GitHub.BranchPrefix)
	assert.Equal(t, ProviderGemini, cfg.Gemini.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.InDelta(t, 0.1, cfg.Gemini.Temperature, 0.0001)
	assert.Equal(t, "last_run.txt", cfg.State.LastRunFile)
	assert.True(t, cfg.Network.ForceHTTP2)
	assert.Equal(t, 90*time.Second, cfg.Network.ResponseHeaderTimeout)
	assert.Len(t, cfg.Credentials.Missing(), len(RequiredKeys), "defaults never supply credentials")
}

// -- Loading Tests --

func TestLoad(t *testing.T) {
	logger := zap.NewNop()

	t.Run("File Only", func(t *testing.T) {
		clearCredentialEnv(t)
		path := writeConfigFile(t, `{
			"SENTRY_TOKEN": "file-token",
			"SENTRY_ORG": "file-org",
			"SENTRY_PROJECT": "file-project",
			"GITHUB_TOKEN": "file-gh",
			"GITHUB_REPO": "owner/repo",
			"GEMINI_API_KEY": "file-gemini",
			"logger": {"level": "debug"},
			"sentry": {"marker_tag": "custom-marker"}
		}`)

		cfg, err := Load(path, logger)
		require.NoError(t, err)

		assert.Equal(t, "file-token", cfg.Credentials.SentryToken)
		assert.Equal(t, "file-org", cfg.Credentials.SentryOrg)
		assert.Equal(t, "file-project", cfg.Credentials.SentryProject)
		assert.Equal(t, "file-gh", cfg.Credentials.GitHubToken)
		assert.Equal(t, "owner/repo", cfg.Credentials.GitHubRepo)
		assert.Equal(t, "file-gemini", cfg.Credentials.GeminiAPIKey)
		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "custom-marker", cfg.Sentry.MarkerTag)
		// Untouched sections keep their defaults.
		assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Environment Overrides File", func(t *testing.T) {
		clearCredentialEnv(t)
		path := writeConfigFile(t, `{"SENTRY_TOKEN": "file-token", "GITHUB_REPO": "file/repo"}`)
		t.Setenv(KeySentryToken, "env-token")
		t.Setenv(KeyGeminiAPIKey, "env-gemini")

		cfg, err := Load(path, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-token", cfg.Credentials.SentryToken, "environment must take precedence")
		assert.Equal(t, "file/repo", cfg.Credentials.GitHubRepo, "file value survives when env is unset")
		assert.Equal(t, "env-gemini", cfg.Credentials.GeminiAPIKey)
		assert.Empty(t, cfg.Credentials.SentryOrg)
	})

	t.Run("Empty Environment Value Overrides File", func(t *testing.T) {
		clearCredentialEnv(t)
		creds := fullCredentials()
		path := writeConfigFile(t, `{
			"SENTRY_TOKEN": "from-file",
			"SENTRY_ORG": "`+creds.SentryOrg+`",
			"SENTRY_PROJECT": "`+creds.SentryProject+`",
			"GITHUB_TOKEN": "`+creds.GitHubToken+`",
			"GITHUB_REPO": "`+creds.GitHubRepo+`",
			"GEMINI_API_KEY": "`+creds.GeminiAPIKey+`"
		}`)
		t.Setenv(KeySentryToken, "")

		cfg, err := Load(path, logger)
		require.NoError(t, err)

		assert.Empty(t, cfg.Credentials.SentryToken, "a set but empty variable still wins over the file")
		err = cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), KeySentryToken)
	})

	t.Run("Environment Only", func(t *testing.T) {
		clearCredentialEnv(t)
		creds := fullCredentials()
		t.Setenv(KeySentryToken, creds.SentryToken)
		t.Setenv(KeySentryOrg, creds.SentryOrg)
		t.Setenv(KeySentryProject, creds.SentryProject)
		t.Setenv(KeyGitHubToken, creds.GitHubToken)
		t.Setenv(KeyGitHubRepo, creds.GitHubRepo)
		t.Setenv(KeyGeminiAPIKey, creds.GeminiAPIKey)

		cfg, err := Load("", logger)
		require.NoError(t, err)
		assert.Equal(t, creds, cfg.Credentials)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Malformed File Is Logged And Ignored", func(t *testing.T) {
		clearCredentialEnv(t)
		core, logs := observer.New(zap.ErrorLevel)
		path := writeConfigFile(t, `{"SENTRY_TOKEN": "file-token",`)
		t.Setenv(KeySentryOrg, "env-org")

		cfg, err := Load(path, zap.New(core))
		require.NoError(t, err)

		assert.Empty(t, cfg.Credentials.SentryToken, "nothing from a broken file may be used")
		assert.Equal(t, "env-org", cfg.Credentials.SentryOrg)
		assert.Equal(t, 1, logs.FilterMessage("Error loading config file, ignoring its contents.").Len())
	})

	t.Run("Missing File Is Tolerated", func(t *testing.T) {
		clearCredentialEnv(t)
		core, logs := observer.New(zap.WarnLevel)

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"), zap.New(core))
		require.NoError(t, err)
		assert.Len(t, cfg.Credentials.Missing(), len(RequiredKeys))
		assert.Equal(t, 1, logs.Len())
	})
}

func TestNewConfigFromViper_ExpandsHome(t *testing.T) {
	clearCredentialEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("json")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`{"state": {"last_run_file": "~/agent/last_run.txt"}}`)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "agent", "last_run.txt"), cfg.State.LastRunFile)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Credentials = fullCredentials()
		assert.NoError(t, cfg.Validate())
	})

	// Every single missing credential must fail validation on its own.
	for _, key := range RequiredKeys {
		key := key
		t.Run("Missing "+key, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Credentials = fullCredentials()
			blank(&cfg.Credentials, key)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), key)
			assert.Equal(t, []string{key}, cfg.Credentials.Missing())
		})
	}

	t.Run("Whitespace Counts As Missing", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Credentials = fullCredentials()
		cfg.Credentials.SentryOrg = "   "
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("Reports All Missing Keys", func(t *testing.T) {
		cfg := NewDefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SENTRY_TOKEN, SENTRY_ORG, SENTRY_PROJECT, GITHUB_TOKEN, GITHUB_REPO, GEMINI_API_KEY")
	})

	t.Run("Malformed Repository", func(t *testing.T) {
		for _, repo := range []string{"no-slash", "/name", "owner/", "a/b/c"} {
			cfg := NewDefaultConfig()
			cfg.Credentials = fullCredentials()
			cfg.Credentials.GitHubRepo = repo
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig, repo)
			assert.Contains(t, err.Error(), "owner/name", repo)
		}
	})

	t.Run("Negative Rate", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Credentials = fullCredentials()
		cfg.Sentry.RequestsPerSecond = -1
		assert.ErrorContains(t, cfg.Validate(), "sentry.requests_per_second")
	})

	t.Run("Proxy URL", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Credentials = fullCredentials()
		cfg.Network.ProxyURL = "http://proxy.internal:3128"
		assert.NoError(t, cfg.Validate())

		cfg.Network.ProxyURL = "proxy.internal"
		assert.ErrorContains(t, cfg.Validate(), "network.proxy_url")
	})
}

func TestRepository(t *testing.T) {
	creds := fullCredentials()
	owner, name, err := creds.Repository()
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "tasks", name)
}

func TestRedacted(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Credentials = fullCredentials()

	safe := cfg.Redacted()
	assert.Equal(t, redacted, safe.Credentials.SentryToken)
	assert.Equal(t, redacted, safe.Credentials.GitHubToken)
	assert.Equal(t, redacted, safe.Credentials.GeminiAPIKey)
	assert.Equal(t, "acme/tasks", safe.Credentials.GitHubRepo)
	// The original must be left alone.
	assert.Equal(t, "ghp_token", cfg.Credentials.GitHubToken)
}

func blank(c *Credentials, key string) {
	switch key {
	case KeySentryToken:
		c.SentryToken = ""
	case KeySentryOrg:
		c.SentryOrg = ""
	case KeySentryProject:
		c.SentryProject = ""
	case KeyGitHubToken:
		c.GitHubToken = ""
	case KeyGitHubRepo:
		c.GitHubRepo = ""
	case KeyGeminiAPIKey:
		c.GeminiAPIKey = ""
	}
}
