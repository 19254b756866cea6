package classify

import (
	"context"
	"fmt"
	"math"

	"github.com/nzoschke/musicagent/pkg/corpus"
	"github.com/nzoschke/musicagent/pkg/features"
)

// Decision is the outcome of classifying one descriptor vector.
type Decision struct {
	Genre      Genre   `json:"genre"`
	Subgenre   string  `json:"subgenre"`
	Confidence int     `json:"confidence"` // percent
	Similar    []Match `json:"similar_tracks"`
}

// Decide ranks c against d and picks a genre. A nil model selects the rule
// based fallback. A model error fails the decision.
func Decide(ctx context.Context, d features.Descriptors, c corpus.Corpus, m Model) (Decision, error) {
	similar := Rank(d, c)

	var (
		genre Genre
		conf  int
	)
	if m == nil {
		genre, conf = RuleBased(d)
	} else {
		idx, probs, err := m.Classify(ctx, Normalize(d))
		if err != nil {
			return Decision{}, fmt.Errorf("classify: %w", err)
		}
		if idx < 0 || idx >= len(Genres) || idx >= len(probs) {
			return Decision{}, fmt.Errorf("%w: category %d of %d", ErrBadModel, idx, len(probs))
		}
		genre = Genres[idx]
		conf = int(math.Floor(probs[idx]*100 + 0.5))
		conf = max(0, min(100, conf))
	}

	return Decision{
		Genre:      genre,
		Subgenre:   Subgenre(genre, d),
		Confidence: conf,
		Similar:    similar,
	}, nil
}
