// Package config provides API key management utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "bedrock"
	KeySourceNone    KeySource = "none"
)

// resolveAPIKey finds the effective key and where it came from. Precedence:
// Bedrock needs no key at all, then the environment, then the config file.
func resolveAPIKey(cfg *Config) (string, KeySource) {
	if cfg != nil && cfg.Anthropic.UseBedrock {
		return "", KeySourceBedrock
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, KeySourceEnv
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		// The stored value may be a ${VAR} reference to keep the secret out
		// of the file; an unexpanded reference means the variable is unset.
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}

	return "", KeySourceNone
}

// GetAPIKey returns the Anthropic API key from the configuration. When
// Bedrock is enabled no key is needed and the empty string is returned
// without error.
func GetAPIKey(cfg *Config) (string, error) {
	key, source := resolveAPIKey(cfg)
	if source == KeySourceNone {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	_, source := resolveAPIKey(cfg)
	return source
}

// ValidateAPIKey performs basic format validation on an API key. It does not
// verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
