package config

import (
	"testing"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	key, err := GetAPIKey(nil)
	if err != nil {
		t.Fatalf("GetAPIKey failed: %v", err)
	}
	if key != "sk-ant-from-env" {
		t.Errorf("key = %q, want env value", key)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-from-config"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey failed: %v", err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("key = %q, want config value", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(Default()); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestGetAPIKeyBedrockNeedsNoKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Anthropic.UseBedrock = true

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey with bedrock failed: %v", err)
	}
	if key != "" {
		t.Errorf("key = %q, want empty under bedrock", key)
	}
	if got := GetAPIKeySource(cfg); got != KeySourceBedrock {
		t.Errorf("source = %s, want bedrock", got)
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	if got := GetAPIKeySource(nil); got != KeySourceEnv {
		t.Errorf("source = %s, want environment", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-from-config"
	if got := GetAPIKeySource(cfg); got != KeySourceConfig {
		t.Errorf("source = %s, want config_file", got)
	}

	if got := GetAPIKeySource(Default()); got != KeySourceNone {
		t.Errorf("source = %s, want none", got)
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("sk-ant-REDACTED"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := ValidateAPIKey(""); err != ErrNoAPIKey {
		t.Errorf("empty key: got %v", err)
	}
	if err := ValidateAPIKey("not-a-key"); err == nil {
		t.Error("expected prefix error")
	}
	if err := ValidateAPIKey("sk-ant-x"); err == nil {
		t.Error("expected length error")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("empty mask = %q", got)
	}
	if got := MaskAPIKey("short"); got != "***" {
		t.Errorf("short mask = %q", got)
	}
	if got := MaskAPIKey("sk-ant-REDACTED"); got != "sk-ant-...9999" {
		t.Errorf("mask = %q", got)
	}
}
