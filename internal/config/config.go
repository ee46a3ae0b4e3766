// Package config handles configuration loading and management for
// Quartermaster. It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Config holds all configuration for Quartermaster.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Planner      PlannerConfig      `mapstructure:"planner"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Events       EventsConfig       `mapstructure:"events"`
	Data         DataConfig         `mapstructure:"data"`
	Debug        DebugConfig        `mapstructure:"debug"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes model calls through AWS Bedrock instead of the
	// Anthropic API. No API key is required when set.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	Region     string `mapstructure:"region"`
}

// PlannerConfig holds planning settings.
type PlannerConfig struct {
	// Model is the model the planner calls.
	Model string `mapstructure:"model"`
	// MaxTokens bounds the planner's response size.
	MaxTokens int `mapstructure:"max_tokens"`
}

// ConfirmationConfig holds confirmation session policy.
type ConfirmationConfig struct {
	// Timeout is the bounded wait before an unanswered session expires.
	// Zero disables the timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// OnTimeout, if set to a strategy name (newest, oldest, all), is
	// auto-applied when a session expires instead of cancelling the plan.
	OnTimeout string `mapstructure:"on_timeout"`
}

// TimeoutStrategy returns the configured auto-apply strategy, or empty when
// expiry should cancel the plan. Unknown names and "cancel" both map to
// empty, since cancelling is already the default expiry behavior.
func (c ConfirmationConfig) TimeoutStrategy() models.Strategy {
	s := models.Strategy(c.OnTimeout)
	if !s.Valid() || s == models.StrategyCancel {
		return ""
	}
	return s
}

// EventsConfig holds progress channel settings.
type EventsConfig struct {
	// BufferSize is the progress channel's buffer; events beyond it are
	// dropped rather than blocking execution.
	BufferSize int `mapstructure:"buffer_size"`
}

// DataConfig holds on-disk data locations.
type DataConfig struct {
	// CatalogPath is the YAML callable catalog.
	CatalogPath string `mapstructure:"catalog_path"`
	// PantryPath is the YAML pantry inventory file.
	PantryPath string `mapstructure:"pantry_path"`
	// HistoryPath is the SQLite run-history database.
	HistoryPath string `mapstructure:"history_path"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// LogPath, if set, enables the file-backed debug log.
	LogPath string `mapstructure:"log_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment
// variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, QM_*)
// 2. Project config (.quartermaster.yaml in current directory or a parent)
// 3. User config (~/.config/quartermaster/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over user config.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("QM")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_bedrock", "QM_USE_BEDROCK")
	v.BindEnv("anthropic.region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.region", cfg.Anthropic.Region)
	v.Set("planner.model", cfg.Planner.Model)
	v.Set("planner.max_tokens", cfg.Planner.MaxTokens)
	v.Set("confirmation.timeout", cfg.Confirmation.Timeout.String())
	v.Set("confirmation.on_timeout", cfg.Confirmation.OnTimeout)
	v.Set("events.buffer_size", cfg.Events.BufferSize)
	v.Set("data.catalog_path", cfg.Data.CatalogPath)
	v.Set("data.pantry_path", cfg.Data.PantryPath)
	v.Set("data.history_path", cfg.Data.HistoryPath)
	v.Set("debug.log_path", cfg.Debug.LogPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.region", "us-east-1")

	v.SetDefault("planner.model", "claude-sonnet-4-20250514")
	v.SetDefault("planner.max_tokens", 4096)

	v.SetDefault("confirmation.timeout", "2m")
	v.SetDefault("confirmation.on_timeout", "")

	v.SetDefault("events.buffer_size", 100)

	dataDir := getUserDataDir()
	v.SetDefault("data.catalog_path", filepath.Join(dataDir, "catalog.yaml"))
	v.SetDefault("data.pantry_path", filepath.Join(dataDir, "pantry.yaml"))
	v.SetDefault("data.history_path", filepath.Join(dataDir, "history.db"))

	v.SetDefault("debug.log_path", "")
}

// getUserConfigDir returns the XDG config directory for Quartermaster.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quartermaster")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quartermaster")
	}
	return filepath.Join(home, ".config", "quartermaster")
}

// getUserDataDir returns the XDG data directory for Quartermaster.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "quartermaster")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "quartermaster")
	}
	return filepath.Join(home, ".local", "share", "quartermaster")
}

// findProjectConfig searches for .quartermaster.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quartermaster.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	dataDir := getUserDataDir()
	return &Config{
		Anthropic: AnthropicConfig{
			APIKey: "",
			Region: "us-east-1",
		},
		Planner: PlannerConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Confirmation: ConfirmationConfig{
			Timeout: 2 * time.Minute,
		},
		Events: EventsConfig{
			BufferSize: 100,
		},
		Data: DataConfig{
			CatalogPath: filepath.Join(dataDir, "catalog.yaml"),
			PantryPath:  filepath.Join(dataDir, "pantry.yaml"),
			HistoryPath: filepath.Join(dataDir, "history.db"),
		},
	}
}
