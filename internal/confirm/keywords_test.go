package confirm

import (
	"testing"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

var allStrategies = []models.Strategy{
	models.StrategyNewest,
	models.StrategyOldest,
	models.StrategyAll,
	models.StrategyCancel,
}

func TestMatchStrategySynonyms(t *testing.T) {
	cases := map[string]models.Strategy{
		"newest":              models.StrategyNewest,
		"the NEWEST one":      models.StrategyNewest,
		"latest":              models.StrategyNewest,
		"most recent please":  models.StrategyNewest,
		"oldest":              models.StrategyOldest,
		"the earliest":        models.StrategyOldest,
		"all":                 models.StrategyAll,
		"all of them":         models.StrategyAll,
		"every single one":    models.StrategyAll,
		"cancel":              models.StrategyCancel,
		"never mind":          models.StrategyCancel,
		"just forget it then": models.StrategyCancel,
	}

	for reply, want := range cases {
		got, ok := MatchStrategy(reply, allStrategies)
		if !ok || got != want {
			t.Errorf("reply %q: got (%s, %v), want (%s, true)", reply, got, ok, want)
		}
	}
}

func TestMatchStrategyNoMatch(t *testing.T) {
	for _, reply := range []string{"", "   ", "the red one", "maybe?", "yes"} {
		if got, ok := MatchStrategy(reply, allStrategies); ok {
			t.Errorf("reply %q: expected no match, got %s", reply, got)
		}
	}
}

func TestMatchStrategyCollisionFailsClosed(t *testing.T) {
	// Mentions of two different strategies must not guess.
	for _, reply := range []string{"newest or oldest", "all, no wait, cancel"} {
		if got, ok := MatchStrategy(reply, allStrategies); ok {
			t.Errorf("reply %q: expected fail-closed, got %s", reply, got)
		}
	}
}

func TestMatchStrategyRespectsAllowedSet(t *testing.T) {
	allowed := []models.Strategy{models.StrategyAll, models.StrategyCancel}
	if got, ok := MatchStrategy("newest", allowed); ok {
		t.Errorf("expected no match outside allowed set, got %s", got)
	}
	if got, ok := MatchStrategy("all", allowed); !ok || got != models.StrategyAll {
		t.Errorf("expected all, got (%s, %v)", got, ok)
	}
}
