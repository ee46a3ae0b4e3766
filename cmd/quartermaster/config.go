package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quartermaster/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Quartermaster configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/quartermaster/config.yaml
Project-specific overrides can be placed in .quartermaster.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (source: %s)\n",
		config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.region: %s\n", cfg.Anthropic.Region)
	fmt.Printf("planner.model: %s\n", cfg.Planner.Model)
	fmt.Printf("planner.max_tokens: %d\n", cfg.Planner.MaxTokens)
	fmt.Printf("confirmation.timeout: %s\n", cfg.Confirmation.Timeout)
	fmt.Printf("confirmation.on_timeout: %s\n", displayDefault(cfg.Confirmation.OnTimeout, "cancel"))
	fmt.Printf("events.buffer_size: %d\n", cfg.Events.BufferSize)
	fmt.Printf("data.catalog_path: %s\n", cfg.Data.CatalogPath)
	fmt.Printf("data.pantry_path: %s\n", cfg.Data.PantryPath)
	fmt.Printf("data.history_path: %s\n", cfg.Data.HistoryPath)
	fmt.Printf("debug.log_path: %s\n", displayDefault(cfg.Debug.LogPath, "(disabled)"))
}

func displayDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.region":
		return cfg.Anthropic.Region, nil
	case "planner.model":
		return cfg.Planner.Model, nil
	case "planner.max_tokens":
		return strconv.Itoa(cfg.Planner.MaxTokens), nil
	case "confirmation.timeout":
		return cfg.Confirmation.Timeout.String(), nil
	case "confirmation.on_timeout":
		return displayDefault(cfg.Confirmation.OnTimeout, "cancel"), nil
	case "events.buffer_size":
		return strconv.Itoa(cfg.Events.BufferSize), nil
	case "data.catalog_path":
		return cfg.Data.CatalogPath, nil
	case "data.pantry_path":
		return cfg.Data.PantryPath, nil
	case "data.history_path":
		return cfg.Data.HistoryPath, nil
	case "debug.log_path":
		return cfg.Debug.LogPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		// ${VAR} references stay unvalidated; they resolve at load time.
		if !strings.HasPrefix(value, "${") {
			if err := config.ValidateAPIKey(value); err != nil {
				return err
			}
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.region":
		cfg.Anthropic.Region = value
	case "planner.model":
		cfg.Planner.Model = value
	case "planner.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Planner.MaxTokens = n
	case "confirmation.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for confirmation.timeout: %w", err)
		}
		cfg.Confirmation.Timeout = d
	case "confirmation.on_timeout":
		switch value {
		case "newest", "oldest", "all", "cancel", "":
			cfg.Confirmation.OnTimeout = value
		default:
			return fmt.Errorf("invalid strategy for on_timeout: %s (want newest, oldest, all, or cancel)", value)
		}
	case "events.buffer_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for buffer_size: %w", err)
		}
		cfg.Events.BufferSize = n
	case "data.catalog_path":
		cfg.Data.CatalogPath = value
	case "data.pantry_path":
		cfg.Data.PantryPath = value
	case "data.history_path":
		cfg.Data.HistoryPath = value
	case "debug.log_path":
		cfg.Debug.LogPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
