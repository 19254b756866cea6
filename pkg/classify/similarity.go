package classify

import (
	"math"
	"sort"

	"github.com/nzoschke/musicagent/pkg/corpus"
	"github.com/nzoschke/musicagent/pkg/features"
)

// MaxSimilar caps the ranked similarity list.
const MaxSimilar = 20

// Match is a reference track with its similarity score.
type Match struct {
	Track corpus.ReferenceTrack `json:"track"`
	Score float64               `json:"score"`
}

// step awards the points of the first threshold that diff falls within.
type step struct {
	within float64
	points float64
}

func award(diff float64, steps ...step) float64 {
	for _, s := range steps {
		if diff <= s.within {
			return s.points
		}
	}
	return 0
}

// Similarity is the additive closeness score of a reference track to d.
func Similarity(d features.Descriptors, t corpus.ReferenceTrack) float64 {
	score := award(math.Abs(d.Tempo-t.Tempo), step{10, 5}, step{20, 3}, step{30, 1})
	score += award(math.Abs(d.Energy-t.Energy), step{0.1, 4}, step{0.2, 2})
	score += award(math.Abs(d.Danceability-t.Danceability), step{0.1, 3}, step{0.2, 1.5})
	score += award(math.Abs(d.Valence-t.Valence), step{0.15, 2}, step{0.3, 1})
	score += award(math.Abs(d.Acousticness-t.Acousticness), step{0.15, 2.5})
	score += award(math.Abs(d.Loudness-t.Loudness), step{4, 2})
	score += award(math.Abs(d.Speechiness-t.Speechiness), step{0.1, 2})
	return score
}

// Rank scores every track in c against d and returns the best MaxSimilar,
// highest first. Equal scores keep corpus order.
func Rank(d features.Descriptors, c corpus.Corpus) []Match {
	matches := make([]Match, len(c))
	for i, t := range c {
		matches[i] = Match{Track: t, Score: Similarity(d, t)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > MaxSimilar {
		matches = matches[:MaxSimilar]
	}
	return matches
}
