package confirm

import (
	"strings"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// keywordEntry binds a set of reply phrasings to one strategy.
type keywordEntry struct {
	strategy models.Strategy
	patterns []string
}

// keywordTable is the fixed, ordered table free-text replies are matched
// against. Matching is case-insensitive substring matching; replies that
// match patterns from more than one strategy fail closed (no match,
// re-prompt) rather than guessing.
var keywordTable = []keywordEntry{
	{models.StrategyNewest, []string{"newest", "latest", "most recent", "last one", "new one"}},
	{models.StrategyOldest, []string{"oldest", "earliest", "first one", "old one"}},
	{models.StrategyAll, []string{"all", "every", "both", "everything"}},
	{models.StrategyCancel, []string{"cancel", "nevermind", "never mind", "stop", "abort", "forget it"}},
}

// MatchStrategy maps a free-text reply onto the strategy vocabulary.
// Returns false if the reply matches no strategy, or ambiguously matches
// more than one.
func MatchStrategy(reply string, allowed []models.Strategy) (models.Strategy, bool) {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	if normalized == "" {
		return "", false
	}

	permitted := make(map[models.Strategy]bool, len(allowed))
	for _, s := range allowed {
		permitted[s] = true
	}

	var matched models.Strategy
	var count int
	for _, entry := range keywordTable {
		if !permitted[entry.strategy] {
			continue
		}
		for _, pattern := range entry.patterns {
			if strings.Contains(normalized, pattern) {
				matched = entry.strategy
				count++
				break
			}
		}
	}

	if count != 1 {
		// Zero or colliding matches: fail closed and let the caller re-prompt.
		return "", false
	}
	return matched, true
}
