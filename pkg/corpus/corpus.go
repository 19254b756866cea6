// Package corpus loads the reference track catalog used for similarity
// ranking.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// ReferenceTrack is one row of the reference catalog.
type ReferenceTrack struct {
	Song         string  `json:"song"`
	Artist       string  `json:"artist"`
	Tempo        float64 `json:"tempo"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
	Valence      float64 `json:"valence"`
	Acousticness float64 `json:"acousticness"`
	Loudness     float64 `json:"loudness"`
	Speechiness  float64 `json:"speechiness"`
	Popularity   float64 `json:"popularity"` // zero when unknown

	Key              *float64 `json:"key,omitempty"`
	Mode             *float64 `json:"mode,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Liveness         *float64 `json:"liveness,omitempty"`
}

// Corpus is an immutable, ordered catalog. It is safe for concurrent reads.
type Corpus []ReferenceTrack

// Stats reports what Load did with the input rows.
type Stats struct {
	Loaded  int
	Skipped int
}

type column int

const (
	colSong column = iota
	colArtist
	colTempo
	colEnergy
	colDanceability
	colValence
	colAcousticness
	colLoudness
	colSpeechiness
	colPopularity
	colKey
	colMode
	colInstrumentalness
	colLiveness
	numColumns
)

// numRequired is the count of leading columns that must be present.
const numRequired = int(colSpeechiness) + 1

var columnNames = [numColumns]string{
	"song", "artist", "tempo", "energy", "danceability", "valence",
	"acousticness", "loudness", "speechiness", "popularity", "key", "mode",
	"instrumentalness", "liveness",
}

// headerAliases maps normalised header names to columns.
var headerAliases = map[string]column{
	"songname":         colSong,
	"song":             colSong,
	"name":             colSong,
	"trackname":        colSong,
	"title":            colSong,
	"artistname":       colArtist,
	"artist":           colArtist,
	"artists":          colArtist,
	"tempo":            colTempo,
	"energy":           colEnergy,
	"danceability":     colDanceability,
	"valence":          colValence,
	"acousticness":     colAcousticness,
	"loudness":         colLoudness,
	"speechiness":      colSpeechiness,
	"popularity":       colPopularity,
	"key":              colKey,
	"mode":             colMode,
	"instrumentalness": colInstrumentalness,
	"liveness":         colLiveness,
}

// normalizeHeader lowercases and strips everything but letters and digits.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range h {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Load parses a headed CSV catalog. Rows that fail to parse are skipped.
func Load(r io.Reader) (Corpus, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Corpus{}, Stats{}, nil
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}

	var index [numColumns]int
	for i := range index {
		index[i] = -1
	}
	for i, h := range header {
		if c, ok := headerAliases[normalizeHeader(h)]; ok && index[c] < 0 {
			index[c] = i
		}
	}
	for c := 0; c < numRequired; c++ {
		if index[c] < 0 {
			return nil, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumn, columnNames[c])
		}
	}

	var (
		tracks Corpus
		stats  Stats
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row: %w", err)
		}
		if isBlank(record) {
			continue
		}

		t, ok := parseRow(record, index)
		if !ok {
			stats.Skipped++
			continue
		}
		tracks = append(tracks, t)
		stats.Loaded++
	}

	return tracks, stats, nil
}

// LoadFile loads the catalog at path.
func LoadFile(path string) (Corpus, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(record []string, index [numColumns]int) (ReferenceTrack, bool) {
	field := func(c column) (string, bool) {
		i := index[c]
		if i < 0 || i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != ""
	}
	number := func(c column) (float64, bool) {
		s, ok := field(c)
		if !ok {
			return 0, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	optional := func(c column) *float64 {
		if v, ok := number(c); ok {
			return &v
		}
		return nil
	}

	var t ReferenceTrack
	var ok bool
	if t.Song, ok = field(colSong); !ok {
		return t, false
	}
	t.Artist, _ = field(colArtist)

	required := []struct {
		col column
		dst *float64
	}{
		{colTempo, &t.Tempo},
		{colEnergy, &t.Energy},
		{colDanceability, &t.Danceability},
		{colValence, &t.Valence},
		{colAcousticness, &t.Acousticness},
		{colLoudness, &t.Loudness},
		{colSpeechiness, &t.Speechiness},
	}
	for _, r := range required {
		if *r.dst, ok = number(r.col); !ok {
			return t, false
		}
	}

	t.Popularity, _ = number(colPopularity)
	t.Key = optional(colKey)
	t.Mode = optional(colMode)
	t.Instrumentalness = optional(colInstrumentalness)
	t.Liveness = optional(colLiveness)
	return t, true
}
