// Package classify ranks reference tracks by similarity and decides a genre
// and subgenre for a descriptor vector.
package classify

// Genre is one of the eight fixed genre labels.
type Genre string

const (
	Electronic Genre = "Electronic/Dance"
	HipHop     Genre = "Hip-Hop/Rap"
	Pop        Genre = "Pop"
	Rock       Genre = "Rock"
	Acoustic   Genre = "Acoustic/Folk"
	RnB        Genre = "R&B/Soul"
	Indie      Genre = "Indie/Alternative"
	Classical  Genre = "Classical/Ambient"
)

// Genres lists every genre in canonical order. Model outputs are indexed in
// this order.
var Genres = []Genre{Electronic, HipHop, Pop, Rock, Acoustic, RnB, Indie, Classical}

// Index returns the canonical position of g, or -1.
func (g Genre) Index() int {
	for i, o := range Genres {
		if o == g {
			return i
		}
	}
	return -1
}

// Valid reports whether g is one of Genres.
func (g Genre) Valid() bool {
	return g.Index() >= 0
}

// Range is an inclusive interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Profile is the expected feature shape of a genre. Nil targets are not
// declared by the genre. Loudness and Instrumentalness are informational and
// do not contribute to rule scoring.
type Profile struct {
	Genre            Genre    `json:"genre"`
	Tempo            Range    `json:"tempo"`
	Energy           *float64 `json:"energy,omitempty"`
	Danceability     *float64 `json:"danceability,omitempty"`
	Valence          *float64 `json:"valence,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty"`
	Speechiness      *float64 `json:"speechiness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty"`
}

func target(v float64) *float64 { return &v }

var profiles = []Profile{
	{Genre: Electronic, Tempo: Range{115, 140}, Energy: target(0.7), Danceability: target(0.7), Acousticness: target(0.3)},
	{Genre: HipHop, Tempo: Range{75, 110}, Energy: target(0.6), Danceability: target(0.75), Speechiness: target(0.25)},
	{Genre: Pop, Tempo: Range{100, 130}, Energy: target(0.65), Danceability: target(0.65), Valence: target(0.55)},
	{Genre: Rock, Tempo: Range{110, 140}, Energy: target(0.75), Acousticness: target(0.2), Loudness: target(-6)},
	{Genre: Acoustic, Tempo: Range{70, 110}, Energy: target(0.4), Acousticness: target(0.7), Instrumentalness: target(0.3)},
	{Genre: RnB, Tempo: Range{80, 120}, Energy: target(0.5), Danceability: target(0.6), Valence: target(0.45)},
	{Genre: Indie, Tempo: Range{90, 130}, Energy: target(0.55), Acousticness: target(0.45), Valence: target(0.5)},
	{Genre: Classical, Tempo: Range{60, 100}, Energy: target(0.3), Acousticness: target(0.8), Instrumentalness: target(0.8)},
}

// Profiles returns a copy of the genre profiles in canonical order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ProfileOf returns the profile of g.
func ProfileOf(g Genre) (Profile, bool) {
	i := g.Index()
	if i < 0 {
		return Profile{}, false
	}
	return profiles[i], true
}
