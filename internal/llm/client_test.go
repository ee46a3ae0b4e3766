package llm

import "testing"

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(100, 50)
	tracker.Add(20, 10)

	in, out := tracker.Total()
	if in != 120 || out != 60 {
		t.Errorf("unexpected totals: in=%d out=%d", in, out)
	}
	if tracker.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", tracker.Calls())
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock("claude-sonnet-4-20250514")
	if got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("unexpected translation: %s", got)
	}

	// Unknown models pass through untouched.
	custom := translateModelForBedrock("us.anthropic.custom-v1:0")
	if custom != "us.anthropic.custom-v1:0" {
		t.Errorf("custom model should pass through, got %s", custom)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
