package classify

import (
	"math"

	"github.com/nzoschke/musicagent/pkg/features"
)

// Rule weights and tolerances of the profile fallback.
const (
	tempoPoints = 25

	energyPoints, energyTol             = 20, 0.2
	danceabilityPoints, danceabilityTol = 15, 0.2
	acousticnessPoints, acousticnessTol = 15, 0.3
	speechinessPoints, speechinessTol   = 15, 0.2
	valencePoints, valenceTol           = 10, 0.2

	minRuleConfidence = 60
	maxRuleConfidence = 95
)

// ProfileScore sums the weighted matches of d against p. Only the targets p
// declares are scored.
func ProfileScore(p Profile, d features.Descriptors) float64 {
	var score float64
	if p.Tempo.Contains(d.Tempo) {
		score += tempoPoints
	}
	near := func(target *float64, v, tol, points float64) {
		if target != nil && math.Abs(v-*target) < tol {
			score += points
		}
	}
	near(p.Energy, d.Energy, energyTol, energyPoints)
	near(p.Danceability, d.Danceability, danceabilityTol, danceabilityPoints)
	near(p.Acousticness, d.Acousticness, acousticnessTol, acousticnessPoints)
	near(p.Speechiness, d.Speechiness, speechinessTol, speechinessPoints)
	near(p.Valence, d.Valence, valenceTol, valencePoints)
	return score
}

// RuleBased picks the highest scoring profile. Ties go to the earlier genre in
// canonical order and a zero score everywhere yields Pop. Confidence is the
// winning score clamped to [60, 95].
func RuleBased(d features.Descriptors) (Genre, int) {
	best, bestScore := Pop, 0.0
	for _, p := range profiles {
		if s := ProfileScore(p, d); s > bestScore {
			best, bestScore = p.Genre, s
		}
	}
	conf := math.Min(maxRuleConfidence, math.Max(minRuleConfidence, bestScore))
	return best, int(conf)
}
