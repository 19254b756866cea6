package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nzoschke/musicagent/pkg/corpus"
	"github.com/nzoschke/musicagent/pkg/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var clubTrack = features.Descriptors{
	Tempo:        128,
	Energy:       0.8,
	Danceability: 0.8,
	Valence:      0.7,
	Acousticness: 0.1,
	Loudness:     -4,
	Speechiness:  0.05,
}

func TestGenres(t *testing.T) {
	assert.Len(t, Genres, 8)
	assert.Len(t, Profiles(), len(Genres))
	for i, g := range Genres {
		assert.Equal(t, i, g.Index())
		p, ok := ProfileOf(g)
		require.True(t, ok)
		assert.Equal(t, g, p.Genre)
	}
	assert.False(t, Genre("Polka").Valid())
	_, ok := ProfileOf("Polka")
	assert.False(t, ok)
}

func TestRuleBasedClubTrack(t *testing.T) {
	electronic, _ := ProfileOf(Electronic)
	acoustic, _ := ProfileOf(Acoustic)
	assert.Equal(t, 75.0, ProfileScore(electronic, clubTrack))
	assert.Equal(t, 0.0, ProfileScore(acoustic, clubTrack))

	g, conf := RuleBased(clubTrack)
	assert.Equal(t, Electronic, g)
	assert.Equal(t, 75, conf)
	assert.Equal(t, "House", Subgenre(Electronic, clubTrack))
}

func TestRuleBasedNoMatch(t *testing.T) {
	d := features.Descriptors{Tempo: 200, Acousticness: 1.2, Speechiness: 1}
	for _, p := range Profiles() {
		assert.Equal(t, 0.0, ProfileScore(p, d), p.Genre)
	}
	g, conf := RuleBased(d)
	assert.Equal(t, Pop, g)
	assert.Equal(t, 60, conf)
}

func TestProfileScore(t *testing.T) {
	tests := []struct {
		genre Genre
		d     features.Descriptors
		want  float64
	}{
		{Electronic, features.Descriptors{Tempo: 115}, 25},
		{Electronic, features.Descriptors{Tempo: 140.5}, 0},
		{HipHop, features.Descriptors{Tempo: 90, Energy: 0.6, Danceability: 0.75, Speechiness: 0.25}, 75},
		{Pop, features.Descriptors{Tempo: 60, Valence: 0.55}, 10},
		{Rock, features.Descriptors{Tempo: 60, Acousticness: 1, Loudness: -6}, 0},
		{Classical, features.Descriptors{Tempo: 80, Energy: 0.3, Acousticness: 0.8, Instrumentalness: 0.8}, 60},
	}
	for _, tt := range tests {
		t.Run(string(tt.genre), func(t *testing.T) {
			p, _ := ProfileOf(tt.genre)
			assert.Equal(t, tt.want, ProfileScore(p, tt.d))
		})
	}
}

func TestSubgenre(t *testing.T) {
	tests := []struct {
		genre Genre
		d     features.Descriptors
		want  string
	}{
		{Electronic, features.Descriptors{Tempo: 135, Energy: 0.9}, "Techno/Trance"},
		{Electronic, features.Descriptors{Tempo: 125, Energy: 0.9}, "Big Room/Festival"},
		{Electronic, features.Descriptors{Tempo: 125, Energy: 0.5}, "Electronic Pop"},
		{HipHop, features.Descriptors{Speechiness: 0.5}, "Rap"},
		{HipHop, features.Descriptors{Speechiness: 0.2, Energy: 0.3}, "Lo-fi Hip-Hop"},
		{HipHop, features.Descriptors{Speechiness: 0.2, Energy: 0.7}, "Contemporary Hip-Hop"},
		{Pop, features.Descriptors{Danceability: 0.8, Acousticness: 0.9}, "Dance Pop"},
		{Pop, features.Descriptors{Acousticness: 0.5}, "Acoustic Pop"},
		{Pop, features.Descriptors{Energy: 0.8}, "Power Pop"},
		{Pop, features.Descriptors{}, "Contemporary Pop"},
		{Rock, features.Descriptors{Energy: 0.9}, "Hard Rock"},
		{Rock, features.Descriptors{Acousticness: 0.4}, "Folk Rock"},
		{Rock, features.Descriptors{}, "Alternative Rock"},
		{Acoustic, features.Descriptors{Instrumentalness: 0.7}, "Instrumental Folk"},
		{Acoustic, features.Descriptors{}, "Singer-Songwriter"},
		{RnB, features.Descriptors{Tempo: 85}, "Neo-Soul"},
		{RnB, features.Descriptors{Tempo: 90}, "Contemporary R&B"},
		{Indie, features.Descriptors{}, DefaultSubgenre},
		{Classical, features.Descriptors{Instrumentalness: 0.9}, DefaultSubgenre},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Subgenre(tt.genre, tt.d))
		})
	}
}

func reference(song string, d features.Descriptors) corpus.ReferenceTrack {
	return corpus.ReferenceTrack{
		Song:         song,
		Tempo:        d.Tempo,
		Energy:       d.Energy,
		Danceability: d.Danceability,
		Valence:      d.Valence,
		Acousticness: d.Acousticness,
		Loudness:     d.Loudness,
		Speechiness:  d.Speechiness,
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 20.5, Similarity(clubTrack, reference("same", clubTrack)))

	far := reference("far", features.Descriptors{Tempo: 60, Energy: 0, Danceability: 0, Valence: 0, Acousticness: 1, Loudness: -40, Speechiness: 1})
	assert.Equal(t, 0.0, Similarity(clubTrack, far))

	near := clubTrack
	near.Tempo += 15
	near.Energy -= 0.15
	near.Valence -= 0.25
	assert.Equal(t, 3+2+3+1+2.5+2+2.0, Similarity(clubTrack, reference("near", near)))
}

func TestRank(t *testing.T) {
	var c corpus.Corpus
	for i := 0; i < 30; i++ {
		c = append(c, reference(fmt.Sprintf("tie-%02d", i), features.Descriptors{Tempo: 60}))
	}
	c = append(c, reference("best", clubTrack))

	ranked := Rank(clubTrack, c)
	require.Len(t, ranked, MaxSimilar)
	assert.Equal(t, "best", ranked[0].Track.Song)
	for i, m := range ranked[1:] {
		assert.Equal(t, fmt.Sprintf("tie-%02d", i), m.Track.Song, "ties keep corpus order")
	}

	assert.Len(t, Rank(clubTrack, c[:3]), 3)
	assert.Empty(t, Rank(clubTrack, nil))
}

func TestNormalize(t *testing.T) {
	v := Normalize(features.Descriptors{
		Tempo: 100, Energy: 0.1, Danceability: 0.2, Valence: 0.3, Acousticness: 0.4,
		Loudness: -30, Speechiness: 0.5, Instrumentalness: 0.6, SpectralCentroid: 2500, DynamicRange: 5,
	})
	assert.Equal(t, Vector{0.5, 0.1, 0.2, 0.3, 0.4, 0.5, 0.5, 0.6, 0.5, 0.5}, v)
	assert.Len(t, v.Float32(), VectorSize)
}

// selector returns a dense softmax layer that passes the first 8 inputs
// through.
func selector() LayerSpec {
	l := LayerSpec{Type: LayerDense, Activation: ActivationSoftmax, Bias: make([]float64, len(Genres))}
	for i := range Genres {
		row := make([]float64, VectorSize)
		row[i] = 1
		l.Weights = append(l.Weights, row)
	}
	return l
}

func TestFeedForward(t *testing.T) {
	m, err := NewFeedForward(FeedForwardSpec{Layers: []LayerSpec{selector()}})
	require.NoError(t, err)

	idx, probs, err := m.Classify(context.Background(), Vector{0, 0, 0, 3, 0, 0, 0, 0, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	require.Len(t, probs, len(Genres))
	assert.InDelta(t, 1.0, floats.Sum(probs), 1e-9)
}

func TestFeedForwardStack(t *testing.T) {
	hidden := LayerSpec{Type: LayerDense, Activation: ActivationReLU, Bias: make([]float64, 4)}
	for i := 0; i < 4; i++ {
		hidden.Weights = append(hidden.Weights, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	}
	norm := LayerSpec{
		Type:     LayerBatchNorm,
		Gamma:    []float64{1, 1, 1, 1},
		Beta:     []float64{0, 0, 0, 0},
		Mean:     []float64{0, 0, 0, 0},
		Variance: []float64{1, 1, 1, 1},
	}
	out := LayerSpec{Type: LayerDense, Activation: ActivationSoftmax, Bias: []float64{0, 0, 0, 0, 0, 0, 0, 1}}
	for range Genres {
		out.Weights = append(out.Weights, []float64{0, 0, 0, 0})
	}

	m, err := NewFeedForward(FeedForwardSpec{Layers: []LayerSpec{hidden, norm, out}})
	require.NoError(t, err)
	idx, probs, err := m.Classify(context.Background(), Normalize(clubTrack))
	require.NoError(t, err)
	assert.Equal(t, 7, idx)
	assert.InDelta(t, 1.0, floats.Sum(probs), 1e-9)
}

func TestBatchNorm(t *testing.T) {
	l, err := newBatchNorm(LayerSpec{
		Gamma: []float64{2}, Beta: []float64{0.5}, Mean: []float64{1}, Variance: []float64{4}, Epsilon: 1e-12,
	}, 1)
	require.NoError(t, err)
	y := l.forward(mat.NewVecDense(1, []float64{3}))
	assert.InDelta(t, 2.5, y.AtVec(0), 1e-9)
}

func TestNewFeedForwardErrors(t *testing.T) {
	short := selector()
	short.Weights = short.Weights[:7]

	narrow := LayerSpec{Type: LayerDense, Bias: make([]float64, 4)}
	for i := 0; i < 4; i++ {
		narrow.Weights = append(narrow.Weights, make([]float64, VectorSize))
	}

	badAct := selector()
	badAct.Activation = "tanh"

	tests := []struct {
		name   string
		layers []LayerSpec
	}{
		{"empty", nil},
		{"unknown type", []LayerSpec{{Type: "conv"}}},
		{"weight rows", []LayerSpec{short}},
		{"output width", []LayerSpec{narrow}},
		{"activation", []LayerSpec{badAct}},
		{"batchnorm width", []LayerSpec{selector(), {Type: LayerBatchNorm, Gamma: []float64{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFeedForward(FeedForwardSpec{Layers: tt.layers})
			assert.ErrorIs(t, err, ErrBadModel)
		})
	}
}

func TestLoadFeedForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"layers":[{"type":"dense","activation":"softmax",
		"weights":[[1,0,0,0,0,0,0,0,0,0],[0,1,0,0,0,0,0,0,0,0],[0,0,1,0,0,0,0,0,0,0],[0,0,0,1,0,0,0,0,0,0],
		[0,0,0,0,1,0,0,0,0,0],[0,0,0,0,0,1,0,0,0,0],[0,0,0,0,0,0,1,0,0,0],[0,0,0,0,0,0,0,1,0,0]],
		"bias":[0,0,0,0,0,0,0,0]}]}`), 0644))

	m, err := LoadFeedForward(path)
	require.NoError(t, err)
	idx, _, err := m.Classify(context.Background(), Vector{1})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = LoadFeedForward(bad)
	assert.ErrorIs(t, err, ErrBadModel)

	_, err = LoadFeedForward(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type fakeModel struct {
	idx   int
	probs []float64
	err   error
}

func (m fakeModel) Classify(ctx context.Context, v Vector) (int, []float64, error) {
	return m.idx, m.probs, m.err
}

func TestDecide(t *testing.T) {
	ctx := context.Background()
	c := corpus.Corpus{reference("a", clubTrack)}

	d, err := Decide(ctx, clubTrack, c, nil)
	require.NoError(t, err)
	assert.Equal(t, Electronic, d.Genre)
	assert.Equal(t, "House", d.Subgenre)
	assert.Equal(t, 75, d.Confidence)
	assert.Len(t, d.Similar, 1)

	probs := []float64{0.01, 0.01, 0.01, 0.875, 0.03, 0.03, 0.02, 0.02}
	d, err = Decide(ctx, clubTrack, nil, fakeModel{idx: 3, probs: probs})
	require.NoError(t, err)
	assert.Equal(t, Rock, d.Genre)
	assert.Equal(t, "Alternative Rock", d.Subgenre)
	assert.Equal(t, 88, d.Confidence)
	assert.Empty(t, d.Similar)

	boom := errors.New("boom")
	_, err = Decide(ctx, clubTrack, c, fakeModel{err: boom})
	assert.ErrorIs(t, err, boom)

	_, err = Decide(ctx, clubTrack, c, fakeModel{idx: 9, probs: probs})
	assert.ErrorIs(t, err, ErrBadModel)
}

func TestTFModelLoadMissing(t *testing.T) {
	_, err := LoadTFModel(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestArgmax32(t *testing.T) {
	idx, probs, err := argmax32([]float32{0.1, 0.5, 0.1, 0.1, 0.05, 0.05, 0.05, 0.05})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Len(t, probs, 8)

	_, _, err = argmax32([]float32{1})
	assert.ErrorIs(t, err, ErrBadModel)
}

func TestOpen(t *testing.T) {
	m, err := Open(KindFeedForward, "")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, CloseModel(m))

	_, err = Open("svm", "model.bin")
	assert.ErrorIs(t, err, ErrBadModel)

	_, err = Open(KindFeedForward, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Open(KindTensorFlow, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
