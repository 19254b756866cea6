package insight

import "github.com/nzoschke/musicagent/pkg/classify"

// rule emits texts when its predicate holds. A nil predicate always holds.
type rule struct {
	when  func(*facts) bool
	texts []string
}

func when(pred func(*facts) bool, texts ...string) rule {
	return rule{when: pred, texts: texts}
}

// chain is a first-match-wins list of rules.
type chain []rule

func (c chain) match(f *facts) ([]string, bool) {
	for _, r := range c {
		if r.when == nil || r.when(f) {
			return r.texts, true
		}
	}
	return nil, false
}

func (c chain) first(f *facts) string {
	texts, _ := c.match(f)
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}

// collect evaluates chains in order and concatenates what matched.
func collect(f *facts, chains []chain) []string {
	out := []string{}
	for _, c := range chains {
		if texts, ok := c.match(f); ok {
			out = append(out, texts...)
		}
	}
	return out
}

// single wraps independent rules as one-rule chains.
func single(rules ...rule) []chain {
	out := make([]chain, len(rules))
	for i, r := range rules {
		out[i] = chain{r}
	}
	return out
}

var strengthRules = []chain{
	{
		when(func(f *facts) bool { return f.Energy > 0.75 }, "Explosive energy - perfect for high-intensity moments"),
		when(func(f *facts) bool { return f.Energy > 0.6 }, "Strong energy levels - engaging and dynamic"),
	},
	{
		when(func(f *facts) bool { return f.Danceability > 0.75 }, "Exceptional groove - club and party ready"),
		when(func(f *facts) bool { return f.Danceability > 0.6 }, "Solid rhythmic foundation - moves bodies"),
	},
	{
		when(func(f *facts) bool { return f.Valence > 0.7 }, "Uplifting vibes - feel-good anthem potential"),
		when(func(f *facts) bool { return f.Valence > 0.5 }, "Positive emotional tone - accessible and warm"),
	},
	{
		when(func(f *facts) bool { return f.Tempo > 120 && f.Tempo < 135 }, "Sweet spot tempo - optimal for mainstream appeal"),
		when(func(f *facts) bool { return f.Tempo > 90 }, "Engaging tempo - keeps momentum flowing"),
	},
	{
		when(func(f *facts) bool { return f.Acousticness > 0.7 }, "Rich organic texture - authentic and intimate"),
		when(func(f *facts) bool { return f.Acousticness < 0.3 }, "Polished electronic production - modern sound"),
	},
	{when(func(f *facts) bool { return f.Loudness > -6 }, "Competitive loudness - radio and streaming ready")},
	{when(func(f *facts) bool { return f.DynamicRange > 5 }, "Great dynamic contrast - expressive and nuanced")},
	{when(func(f *facts) bool { return f.avgPop > 65 }, "Similar to chart-toppers - proven commercial appeal")},
	{when(func(f *facts) bool { return f.Speechiness > 0.4 }, "Strong vocal presence - lyric-driven narrative")},
	{when(func(f *facts) bool { return f.Instrumentalness > 0.6 }, "Rich instrumental layers - cinematic quality")},
}

var improvementRules = single(
	when(func(f *facts) bool { return f.Energy < 0.4 }, "Boost energy - add driving elements and build intensity"),
	when(func(f *facts) bool { return f.Danceability < 0.45 }, "Strengthen groove - enhance rhythmic pocket and pulse"),
	when(func(f *facts) bool { return f.production < 6 }, "Elevate production - refine mix clarity and sonic depth"),
	when(func(f *facts) bool { return f.Valence < 0.35 }, "Brighten the mood - inject uplifting melodic elements"),
	when(func(f *facts) bool { return f.Tempo < 75 }, "Consider uptempo version - increase pace for more energy"),
	when(func(f *facts) bool { return f.Loudness < -15 }, "Increase loudness - optimize for streaming platforms"),
	when(func(f *facts) bool { return f.DynamicRange < 2 }, "Add dynamic variation - create more emotional peaks"),
	when(func(f *facts) bool { return f.avgPop < 35 && f.commercial < 6 }, "Study current trends - incorporate contemporary production techniques"),
	when(func(f *facts) bool { return f.Speechiness > 0.7 }, "Balance vocal density - allow instrumental space to breathe"),
	when(func(f *facts) bool { return f.Acousticness > 0.8 && f.genre != classify.Acoustic }, "Consider subtle electronic elements for wider appeal"),
)

var playlistRules = single(
	when(func(f *facts) bool { return f.Energy > 0.7 && f.Danceability > 0.7 }, "Party Anthems", "Workout Motivation", "Club Bangers"),
	when(func(f *facts) bool { return f.Valence > 0.6 && f.Energy > 0.5 }, "Feel Good Friday", "Happy Hits", "Mood Booster"),
	when(func(f *facts) bool { return f.Acousticness > 0.6 }, "Acoustic Covers", "Unplugged Sessions", "Coffee Shop Vibes"),
	when(func(f *facts) bool { return f.Energy < 0.4 && f.Valence < 0.5 }, "Sad Songs", "Melancholic Moods", "Rainy Day"),
	when(func(f *facts) bool { return f.Instrumentalness > 0.6 }, "Instrumental Focus", "Study Beats", "Background Ambience"),
	when(func(f *facts) bool { return f.Speechiness > 0.4 }, "Rap Caviar", "Hip-Hop Central", "Lyric Focused"),
	when(func(f *facts) bool { return f.Tempo > 120 && f.Energy > 0.6 }, "Running Tracks", "Cardio", "High Energy"),
	when(func(f *facts) bool { return f.viral > 7 }, "Viral Hits", "TikTok Trending", "New Music Friday"),
)

var vibeRules = chain{
	when(func(f *facts) bool { return f.Energy > 0.75 && f.Valence > 0.65 }, "Euphoric & Electric"),
	when(func(f *facts) bool { return f.Energy > 0.75 && f.Valence < 0.4 }, "Intense & Aggressive"),
	when(func(f *facts) bool { return f.Energy > 0.65 && f.Danceability > 0.7 }, "Party-Ready Banger"),
	when(func(f *facts) bool { return f.Energy < 0.35 && f.Valence > 0.6 }, "Serene & Peaceful"),
	when(func(f *facts) bool { return f.Energy < 0.4 && f.Valence < 0.4 }, "Melancholic & Reflective"),
	when(func(f *facts) bool { return f.Danceability > 0.75 }, "Groovy & Infectious"),
	when(func(f *facts) bool { return f.Acousticness > 0.7 }, "Organic & Intimate"),
	when(func(f *facts) bool { return f.Valence > 0.6 }, "Uplifting & Positive"),
	when(nil, "Balanced & Versatile"),
}

var audienceRules = single(
	when(func(f *facts) bool { return f.Energy > 0.7 && f.Danceability > 0.65 }, "Festival crowds & nightclub enthusiasts"),
	when(func(f *facts) bool { return f.Acousticness > 0.6 }, "Indie & folk music aficionados"),
	when(func(f *facts) bool { return f.Tempo > 125 && f.Energy > 0.75 }, "EDM fans & rave culture"),
	when(func(f *facts) bool { return f.Valence < 0.4 && f.Acousticness > 0.4 }, "Introspective listeners & singer-songwriter fans"),
	when(func(f *facts) bool { return f.commercial > 7 }, "Mainstream pop audience & radio listeners"),
	when(func(f *facts) bool { return f.Speechiness > 0.4 }, "Hip-hop heads & lyric enthusiasts"),
	when(func(f *facts) bool { return f.Energy < 0.4 }, "Chill & lo-fi lovers"),
	when(func(f *facts) bool { return f.viral > 7 }, "TikTok & social media users"),
)

var keyInsightRules = []chain{
	{
		when(func(f *facts) bool { return f.commercial >= 8 && f.viral >= 8 }, "🔥 Chart-topping potential - This track has all the ingredients for mainstream success"),
		when(func(f *facts) bool { return f.commercial >= 7 }, "💎 Strong commercial appeal - Radio and playlist-friendly"),
	},
	{when(func(f *facts) bool { return f.Danceability > 0.75 && f.Energy > 0.7 }, "💃 Peak-time ready - Perfect for clubs and festivals")},
	{when(func(f *facts) bool { return f.Acousticness > 0.7 && f.Valence > 0.6 }, "🎸 Organic authenticity - Stands out in electronic-heavy market")},
	{when(func(f *facts) bool { return f.avgPop > 70 }, "📈 Similar to current hits - Aligned with what's working now")},
	{when(func(f *facts) bool { return f.production >= 8 }, "🎚️ Professional production - Mix and master are competitive")},
}

var marketFits = map[classify.Genre]string{
	classify.Electronic: "EDM festivals, nightclubs, fitness streaming, gaming soundtracks, fashion shows",
	classify.HipHop:     "Urban radio, TikTok, street culture brands, sports content, social media",
	classify.Pop:        "Top 40 radio, streaming playlists, TV commercials, retail stores, mainstream media",
	classify.Rock:       "Rock radio, live venues, sports broadcasts, action films, automotive ads",
	classify.Acoustic:   "Coffee shops, indie films, wellness content, travel vlogs, intimate venues",
	classify.RnB:        "R&B stations, late-night radio, romantic content, luxury brands, lifestyle media",
}

const defaultMarketFit = "Indie radio, alternative playlists, film soundtracks, art installations, niche streaming"

// MarketFit returns the market description for g.
func MarketFit(g classify.Genre) string {
	if m, ok := marketFits[g]; ok {
		return m
	}
	return defaultMarketFit
}
