package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Planner.Model == "" {
		t.Error("expected a default planner model")
	}

	if cfg.Planner.MaxTokens != 4096 {
		t.Errorf("expected default max tokens 4096, got %d", cfg.Planner.MaxTokens)
	}

	if cfg.Confirmation.Timeout != 2*time.Minute {
		t.Errorf("expected confirmation timeout 2m, got %v", cfg.Confirmation.Timeout)
	}

	if cfg.Confirmation.OnTimeout != "" {
		t.Errorf("expected timeout to cancel by default, got %q", cfg.Confirmation.OnTimeout)
	}

	if cfg.Events.BufferSize != 100 {
		t.Errorf("expected event buffer 100, got %d", cfg.Events.BufferSize)
	}

	if cfg.Data.CatalogPath == "" || cfg.Data.PantryPath == "" || cfg.Data.HistoryPath == "" {
		t.Error("expected default data paths to be set")
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  use_bedrock: false
planner:
  model: claude-3-5-haiku-20241022
  max_tokens: 2048
confirmation:
  timeout: 30s
  on_timeout: all
events:
  buffer_size: 50
data:
  pantry_path: /tmp/pantry.yaml
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("api_key = %q, want test-key", cfg.Anthropic.APIKey)
	}
	if cfg.Planner.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("model = %q", cfg.Planner.Model)
	}
	if cfg.Planner.MaxTokens != 2048 {
		t.Errorf("max_tokens = %d, want 2048", cfg.Planner.MaxTokens)
	}
	if cfg.Confirmation.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Confirmation.Timeout)
	}
	if cfg.Confirmation.OnTimeout != "all" {
		t.Errorf("on_timeout = %q, want all", cfg.Confirmation.OnTimeout)
	}
	if cfg.Events.BufferSize != 50 {
		t.Errorf("buffer_size = %d, want 50", cfg.Events.BufferSize)
	}
	if cfg.Data.PantryPath != "/tmp/pantry.yaml" {
		t.Errorf("pantry_path = %q", cfg.Data.PantryPath)
	}
	// Unset keys keep defaults.
	if cfg.Data.HistoryPath == "" {
		t.Error("expected default history path to survive partial config")
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("QM_TEST_KEY", "sk-ant-expanded")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "anthropic:\n  api_key: ${QM_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-expanded" {
		t.Errorf("api_key = %q, want expanded value", cfg.Anthropic.APIKey)
	}
}

func TestTimeoutStrategy(t *testing.T) {
	cases := map[string]models.Strategy{
		"":        "",
		"cancel":  "",
		"bogus":   "",
		"all":     models.StrategyAll,
		"newest":  models.StrategyNewest,
		"oldest":  models.StrategyOldest,
	}
	for name, want := range cases {
		cfg := ConfirmationConfig{OnTimeout: name}
		if got := cfg.TimeoutStrategy(); got != want {
			t.Errorf("on_timeout %q: got %q, want %q", name, got, want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.Planner.Model = "claude-opus-4-20250514"
	cfg.Confirmation.OnTimeout = "all"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(filepath.Join(tmpDir, "quartermaster", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Planner.Model != "claude-opus-4-20250514" {
		t.Errorf("model = %q after round trip", loaded.Planner.Model)
	}
	if loaded.Confirmation.OnTimeout != "all" {
		t.Errorf("on_timeout = %q after round trip", loaded.Confirmation.OnTimeout)
	}
}
