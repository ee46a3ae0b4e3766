package confirm

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// RenderPrompt formats the human-readable disambiguation prompt for an
// ambiguity record. This is the only place in the core that turns an
// AmbiguityRecord into prose; the detector and executor deal in structured
// records exclusively.
func RenderPrompt(rec *models.AmbiguityRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q matches %d items:\n", rec.Reference, rec.CandidateCount())
	for _, cand := range rec.Candidates {
		fmt.Fprintf(&b, "  - %s\n", cand.Label)
	}

	options := make([]string, 0, len(rec.Strategies))
	for _, s := range rec.Strategies {
		options = append(options, string(s))
	}
	fmt.Fprintf(&b, "Which should it apply to? Reply %s.", quoteJoin(options))
	return b.String()
}

// quoteJoin renders options like `"newest", "oldest", "all" or "cancel"`.
func quoteJoin(options []string) string {
	quoted := make([]string, len(options))
	for i, o := range options {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	if len(quoted) <= 1 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}
