// Package insight turns descriptors and a genre decision into scores and
// listener-facing text.
package insight

import (
	"fmt"
	"math"
	"strings"

	"github.com/nzoschke/musicagent/pkg/classify"
	"github.com/nzoschke/musicagent/pkg/features"
)

const (
	// PopularityWindow is how many of the most similar tracks feed avgPop.
	PopularityWindow = 7
	// DefaultPopularity stands in for unknown popularity and an empty list.
	DefaultPopularity = 50
	// MaxPlaylists caps PlaylistFit.
	MaxPlaylists = 6
	// MaxScore is the top of every score scale.
	MaxScore = 10
)

// Mood is one named intensity in percent.
type Mood struct {
	Mood      string `json:"mood"`
	Intensity int    `json:"intensity"`
}

// Insights is the scoring output for one track.
type Insights struct {
	CommercialScore int      `json:"commercial_score"`
	ProductionScore int      `json:"production_score"`
	ViralPotential  int      `json:"viral_potential"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	PlaylistFit     []string `json:"playlist_fit"`
	MarketFit       string   `json:"market_fit"`
	Vibe            string   `json:"vibe"`
	TargetAudience  []string `json:"target_audience"`
	MoodProfile     []Mood   `json:"mood_profile"`
	KeyInsights     []string `json:"key_insights"`
	Prediction      string   `json:"prediction"`
}

// facts is what the text rules look at.
type facts struct {
	features.Descriptors
	genre      classify.Genre
	avgPop     float64
	commercial int
	production int
	viral      int
}

// Score computes scores and text for d classified as dec. It is pure.
func Score(d features.Descriptors, dec classify.Decision) Insights {
	f := &facts{
		Descriptors: d,
		genre:       dec.Genre,
		avgPop:      AveragePopularity(dec.Similar),
	}
	f.commercial = commercialScore(f)
	f.production = productionScore(f)
	f.viral = viralPotential(f)

	playlists := collect(f, playlistRules)
	if len(playlists) > MaxPlaylists {
		playlists = playlists[:MaxPlaylists]
	}

	marketFit := MarketFit(dec.Genre)
	return Insights{
		CommercialScore: f.commercial,
		ProductionScore: f.production,
		ViralPotential:  f.viral,
		Strengths:       orDefault(collect(f, strengthRules), "Unique sound profile - explore niche markets and alternative audiences"),
		Improvements:    orDefault(collect(f, improvementRules), "Solid fundamentals - fine-tuning will optimize commercial positioning"),
		PlaylistFit:     playlists,
		MarketFit:       marketFit,
		Vibe:            vibeRules.first(f),
		TargetAudience:  orDefault(collect(f, audienceRules), "General music listeners across demographics"),
		MoodProfile: []Mood{
			{"Happy", percent(d.Valence)},
			{"Energetic", percent(d.Energy)},
			{"Danceable", percent(d.Danceability)},
			{"Acoustic", percent(d.Acousticness)},
		},
		KeyInsights: collect(f, keyInsightRules),
		Prediction: fmt.Sprintf(
			"%s track with %d%% confidence. %s characteristics detected. Commercial score: %d/10, Viral potential: %d/10. Optimized for %s.",
			dec.Genre, dec.Confidence, dec.Subgenre, f.commercial, f.viral, strings.Split(marketFit, ",")[0],
		),
	}
}

// AveragePopularity is the mean popularity of the first PopularityWindow
// matches. Unknown popularity counts as DefaultPopularity, as does an empty
// list.
func AveragePopularity(similar []classify.Match) float64 {
	n := min(len(similar), PopularityWindow)
	if n == 0 {
		return DefaultPopularity
	}
	var sum float64
	for _, m := range similar[:n] {
		p := m.Track.Popularity
		if p == 0 {
			p = DefaultPopularity
		}
		sum += p
	}
	return sum / float64(n)
}

func commercialScore(f *facts) int {
	valenceTerm := 0.5
	if f.Valence > 0.5 {
		valenceTerm = f.Valence * 1.5
	}
	tempoTerm := 0.0
	if f.Tempo > 95 && f.Tempo < 135 {
		tempoTerm = 1
	}
	// Summation order is fixed so sums near x.5 round consistently
	return score(f.Energy*2.5 + f.Danceability*2.5 + valenceTerm + (f.avgPop/10)*2 + tempoTerm)
}

func productionScore(f *facts) int {
	s := (1-f.Acousticness)*3 + f.Energy*2.5 + ((f.Loudness+60)/60)*2.5
	if f.DynamicRange > 3 {
		s += 1.5
	} else {
		s += 0.5
	}
	return score(s / 0.95)
}

func viralPotential(f *facts) int {
	tempoTerm := 0.5
	if f.Tempo > 100 && f.Tempo < 130 {
		tempoTerm = 2
	}
	return score((f.Danceability*3 + f.Energy*2 + tempoTerm + float64(f.commercial)*0.3) / 0.8)
}

// round is half-up: floor(x + 0.5).
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func score(x float64) int {
	return max(0, min(MaxScore, round(x)))
}

func percent(x float64) int {
	return max(0, min(100, round(x*100)))
}

func orDefault(items []string, fallback string) []string {
	if len(items) == 0 {
		return []string{fallback}
	}
	return items
}
