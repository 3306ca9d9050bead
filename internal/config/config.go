package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "togpt"

type Config struct {
	DefaultModel string        `mapstructure:"default_model" yaml:"default_model"`
	Gemini       GeminiConfig  `mapstructure:"gemini" yaml:"gemini"`
	XAI          XAIConfig     `mapstructure:"xai" yaml:"xai"`
	Search       SearchConfig  `mapstructure:"search" yaml:"search"`
	Storage      StorageConfig `mapstructure:"storage" yaml:"storage"`
	Serve        ServeConfig   `mapstructure:"serve" yaml:"serve"`
	Log          LogConfig     `mapstructure:"log" yaml:"log"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

type XAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type SearchConfig struct {
	Google GoogleSearchConfig `mapstructure:"google" yaml:"google"`
}

type GoogleSearchConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	CX     string `mapstructure:"cx" yaml:"cx"`
}

type StorageConfig struct {
	// Path of the SQLite database. Empty means $XDG_STATE_HOME/togpt/togpt.db.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

type ServeConfig struct {
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Token string `mapstructure:"token" yaml:"token,omitempty"`
	// AllowedOrigins are extra browser origins allowed to call the API.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads the config from the default location. A missing file is not
// an error.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config from path, applying defaults and environment
// fallbacks.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in secrets
	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	cfg.XAI.APIKey = expandEnv(cfg.XAI.APIKey)
	cfg.Search.Google.APIKey = expandEnv(cfg.Search.Google.APIKey)
	cfg.Search.Google.CX = expandEnv(cfg.Search.Google.CX)
	cfg.Serve.Token = expandEnv(cfg.Serve.Token)

	// Fall back to environment variables if not set
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if cfg.XAI.APIKey == "" {
		cfg.XAI.APIKey = os.Getenv("XAI_API_KEY")
	}
	if cfg.Search.Google.APIKey == "" {
		cfg.Search.Google.APIKey = os.Getenv("GOOGLE_SEARCH_API_KEY")
	}
	if cfg.Search.Google.CX == "" {
		cfg.Search.Google.CX = os.Getenv("GOOGLE_SEARCH_CX")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultModel: "gemini",
		Gemini:       GeminiConfig{Model: "gemini-1.5-flash"},
		XAI:          XAIConfig{Model: "grok-beta", BaseURL: "https://api.x.ai/v1"},
		Serve:        ServeConfig{Addr: "127.0.0.1:8787"},
		Log:          LogConfig{Level: "warn", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("default_model", d.DefaultModel)
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("xai.model", d.XAI.Model)
	v.SetDefault("xai.base_url", d.XAI.BaseURL)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks values that would otherwise fail later in less obvious ways.
func (c *Config) Validate() error {
	switch c.DefaultModel {
	case "gemini", "grok", "mock":
	default:
		return fmt.Errorf("invalid default_model %q (valid: gemini, grok, mock)", c.DefaultModel)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q (valid: text, json)", c.Log.Format)
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, "config.yaml"))
}

// DatabasePath returns the configured database path or the XDG default.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	return xdg.StateFile(filepath.Join(appName, appName+".db"))
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := "# togpt configuration\n# API keys may reference environment variables, e.g. api_key: ${GEMINI_API_KEY}\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}

// Template returns a config suitable for `config init`, with secrets
// pointing at environment variables instead of literal values.
func Template() *Config {
	cfg := Default()
	cfg.Gemini.APIKey = "${GEMINI_API_KEY}"
	cfg.XAI.APIKey = "${XAI_API_KEY}"
	cfg.Search.Google.APIKey = "${GOOGLE_SEARCH_API_KEY}"
	cfg.Search.Google.CX = "${GOOGLE_SEARCH_CX}"
	return cfg
}
