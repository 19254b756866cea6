package classify

import "github.com/nzoschke/musicagent/pkg/features"

// DefaultSubgenre labels genres without subgenre rules.
const DefaultSubgenre = "Contemporary Pop"

type subgenreRule struct {
	match func(features.Descriptors) bool
	label string
}

type subgenreTable struct {
	rules    []subgenreRule
	fallback string
}

var subgenres = map[Genre]subgenreTable{
	Electronic: {
		rules: []subgenreRule{
			{func(d features.Descriptors) bool { return d.Tempo > 130 }, "Techno/Trance"},
			{func(d features.Descriptors) bool { return d.Energy > 0.8 }, "Big Room/Festival"},
			{func(d features.Descriptors) bool { return d.Danceability > 0.75 }, "House"},
		},
		fallback: "Electronic Pop",
	},
	HipHop: {
		rules: []subgenreRule{
			{func(d features.Descriptors) bool { return d.Speechiness > 0.4 }, "Rap"},
			{func(d features.Descriptors) bool { return d.Energy < 0.5 }, "Lo-fi Hip-Hop"},
		},
		fallback: "Contemporary Hip-Hop",
	},
	Pop: {
		rules: []subgenreRule{
			{func(d features.Descriptors) bool { return d.Danceability > 0.7 }, "Dance Pop"},
			{func(d features.Descriptors) bool { return d.Acousticness > 0.4 }, "Acoustic Pop"},
			{func(d features.Descriptors) bool { return d.Energy > 0.7 }, "Power Pop"},
		},
		fallback: "Contemporary Pop",
	},
	Rock: {
		rules: []subgenreRule{
			{func(d features.Descriptors) bool { return d.Energy > 0.8 }, "Hard Rock"},
			{func(d features.Descriptors) bool { return d.Acousticness > 0.3 }, "Folk Rock"},
		},
		fallback: "Alternative Rock",
	},
	Acoustic: {
		rules: []subgenreRule{
			{func(d features.Descriptors) bool { return d.Instrumentalness > 0.6 }, "Instrumental Folk"},
		},
		fallback: "Singer-Songwriter",
	},
	RnB: {
		rules: []subgenreRule{
			{func(d features.Descriptors) bool { return d.Tempo < 90 }, "Neo-Soul"},
		},
		fallback: "Contemporary R&B",
	},
}

// Subgenre returns the label of the first matching rule for g.
func Subgenre(g Genre, d features.Descriptors) string {
	table, ok := subgenres[g]
	if !ok {
		return DefaultSubgenre
	}
	for _, r := range table.rules {
		if r.match(d) {
			return r.label
		}
	}
	return table.fallback
}
