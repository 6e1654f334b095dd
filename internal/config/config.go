// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Environment variable names (and JSON file keys) of the required credentials.
const (
	KeySentryToken   = "SENTRY_TOKEN"
	KeySentryOrg     = "SENTRY_ORG"
	KeySentryProject = "SENTRY_PROJECT"
	KeyGitHubToken   = "GITHUB_TOKEN"
	KeyGitHubRepo    = "GITHUB_REPO"
	KeyGeminiAPIKey  = "GEMINI_API_KEY"
)

// RequiredKeys lists every credential a run needs, in reporting order.
var RequiredKeys = []string{
	KeySentryToken,
	KeySentryOrg,
	KeySentryProject,
	KeyGitHubToken,
	KeyGitHubRepo,
	KeyGeminiAPIKey,
}

const redacted = "****"

// Config holds the entire application configuration.
type Config struct {
	// Credentials are read by key rather than unmarshaled, see NewConfigFromViper.
	Credentials Credentials   `mapstructure:"-" yaml:"credentials"`
	Logger      LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Sentry      SentryConfig  `mapstructure:"sentry" yaml:"sentry"`
	GitHub      GitHubConfig  `mapstructure:"github" yaml:"github"`
	Gemini      GeminiConfig  `mapstructure:"gemini" yaml:"gemini"`
	Network     NetworkConfig `mapstructure:"network" yaml:"network"`
	State       StateConfig   `mapstructure:"state" yaml:"state"`
}

// Credentials are the six values without which no run may start.
type Credentials struct {
	SentryToken   string `yaml:"sentry_token"`
	SentryOrg     string `yaml:"sentry_org"`
	SentryProject string `yaml:"sentry_project"`
	GitHubToken   string `yaml:"github_token"`
	GitHubRepo    string `yaml:"github_repo"`
	GeminiAPIKey  string `yaml:"gemini_api_key"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// SentryConfig tunes the issue tracker client.
type SentryConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	MarkerTag         string        `mapstructure:"marker_tag" yaml:"marker_tag"`
	MarkerValue       string        `mapstructure:"marker_value" yaml:"marker_value"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GitHubConfig tunes the source host client.
type GitHubConfig struct {
	// BaseURL is empty for github.com, otherwise a GitHub Enterprise API URL.
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	BranchPrefix string        `mapstructure:"branch_prefix" yaml:"branch_prefix"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// GeminiConfig defines the configuration of the fix generation model.
type GeminiConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int32         `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NetworkConfig tunes the HTTP transport shared by the API clients.
type NetworkConfig struct {
	// ProxyURL is used for every API call. Empty means the proxy environment
	// variables apply.
	ProxyURL              string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	InsecureSkipVerify    bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	ForceHTTP2            bool          `mapstructure:"force_http2" yaml:"force_http2"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"tls_handshake_timeout" yaml:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout" yaml:"response_header_timeout"`
}

// StateConfig locates the files that persist between runs.
type StateConfig struct {
	LastRunFile string `mapstructure:"last_run_file" yaml:"last_run_file"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sentry-fix-agent")
	v.SetDefault("logger.log_file", "sentry_agent.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Sentry --
	v.SetDefault("sentry.base_url", "https://sentry.io/api/0")
	v.SetDefault("sentry.marker_tag", "ai-fix-pr-raised")
	v.SetDefault("sentry.marker_value", "true")
	v.SetDefault("sentry.requests_per_second", 0)
	v.SetDefault("sentry.timeout", "30s")

	// -- GitHub --
	v.SetDefault("github.base_url", "")
	v.SetDefault("github.branch_prefix", "fix/sentry-")
	v.SetDefault("github.timeout", "30s")

	// -- Gemini --
	v.SetDefault("gemini.provider", string(ProviderGemini))
	v.SetDefault("gemini.model", "gemini-2.5-pro")
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.timeout", "2m")

	// -- Network --
	v.SetDefault("network.proxy_url", "")
	v.SetDefault("network.insecure_skip_verify", false)
	v.SetDefault("network.force_http2", true)
	v.SetDefault("network.tls_handshake_timeout", "10s")
	v.SetDefault("network.response_header_timeout", "90s")

	// -- State --
	v.SetDefault("state.last_run_file", "last_run.txt")
}

// Load reads the optional JSON file at path and overlays the environment.
// A file that cannot be read or parsed is logged and treated as empty; the
// returned config is not validated.
func Load(path string, logger *zap.Logger) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			logger.Warn("Config file not found, using environment only.", zap.String("path", path), zap.Error(err))
		} else {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				logger.Error("Error loading config file, ignoring its contents.", zap.String("path", path), zap.Error(err))
			} else {
				logger.Info("Loaded configuration.", zap.String("path", path))
			}
		}
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// The six credential keys are bound to the environment, which takes
// precedence over any file value. A variable that is set but empty still
// wins, and then fails validation.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.AllowEmptyEnv(true)
	for _, key := range RequiredKeys {
		if err := v.BindEnv(strings.ToLower(key), key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Credentials = Credentials{
		SentryToken:   v.GetString(strings.ToLower(KeySentryToken)),
		SentryOrg:     v.GetString(strings.ToLower(KeySentryOrg)),
		SentryProject: v.GetString(strings.ToLower(KeySentryProject)),
		GitHubToken:   v.GetString(strings.ToLower(KeyGitHubToken)),
		GitHubRepo:    v.GetString(strings.ToLower(KeyGitHubRepo)),
		GeminiAPIKey:  v.GetString(strings.ToLower(KeyGeminiAPIKey)),
	}

	var err error
	if cfg.Logger.LogFile, err = homedir.Expand(cfg.Logger.LogFile); err != nil {
		return nil, fmt.Errorf("logger.log_file: %w", err)
	}
	if cfg.State.LastRunFile, err = homedir.Expand(cfg.State.LastRunFile); err != nil {
		return nil, fmt.Errorf("state.last_run_file: %w", err)
	}
	return &cfg, nil
}

// Missing returns the names of every empty credential.
func (c *Credentials) Missing() []string {
	values := map[string]string{
		KeySentryToken:   c.SentryToken,
		KeySentryOrg:     c.SentryOrg,
		KeySentryProject: c.SentryProject,
		KeyGitHubToken:   c.GitHubToken,
		KeyGitHubRepo:    c.GitHubRepo,
		KeyGeminiAPIKey:  c.GeminiAPIKey,
	}
	var missing []string
	for _, key := range RequiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if missing := c.Credentials.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing required configuration values: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if _, _, err := c.Credentials.Repository(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Sentry.MarkerTag == "" {
		return fmt.Errorf("%w: sentry.marker_tag must not be empty", ErrInvalidConfig)
	}
	if c.Sentry.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: sentry.requests_per_second must not be negative", ErrInvalidConfig)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("%w: gemini.model must not be empty", ErrInvalidConfig)
	}
	if c.Network.ProxyURL != "" {
		if u, err := url.Parse(c.Network.ProxyURL); err != nil || u.Host == "" {
			return fmt.Errorf("%w: network.proxy_url %q is not an absolute URL", ErrInvalidConfig, c.Network.ProxyURL)
		}
	}
	return nil
}

// Repository splits GITHUB_REPO into its owner and name.
func (c *Credentials) Repository() (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(c.GitHubRepo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%s must be of the form owner/name, got %q", KeyGitHubRepo, c.GitHubRepo)
	}
	return parts[0], parts[1], nil
}

// Redacted returns a copy safe for display, with secrets masked.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	c.Credentials.SentryToken = mask(c.Credentials.SentryToken)
	c.Credentials.GitHubToken = mask(c.Credentials.GitHubToken)
	c.Credentials.GeminiAPIKey = mask(c.Credentials.GeminiAPIKey)
	return c
}
