package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/nzoschke/musicagent/pkg/features"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// VectorSize is the model input width.
const VectorSize = 10

var (
	// ErrBadModel is returned for malformed weights or model output.
	ErrBadModel = errors.New("bad model")
	// ErrModelUnavailable is returned when a model backend is not compiled in
	// or cannot be initialised.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Vector is the normalised model input.
type Vector [VectorSize]float64

// Normalize scales descriptors into the model input ranges.
func Normalize(d features.Descriptors) Vector {
	return Vector{
		d.Tempo / 200,
		d.Energy,
		d.Danceability,
		d.Valence,
		d.Acousticness,
		(d.Loudness + 60) / 60,
		d.Speechiness,
		d.Instrumentalness,
		d.SpectralCentroid / 5000,
		d.DynamicRange / 10,
	}
}

// Float32 returns v as float32 for tensor inputs.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Model classifies a vector into one of len(Genres) categories and returns
// the winning index with the full probability vector. Implementations are
// shared read-only across runs.
type Model interface {
	Classify(ctx context.Context, v Vector) (int, []float64, error)
}

// Layer kinds and activations understood by FeedForward.
const (
	LayerDense     = "dense"
	LayerBatchNorm = "batchnorm"

	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationSoftmax = "softmax"
)

// LayerSpec is the JSON form of one layer. Dense weights are rows of
// len(Bias) outputs by input width.
type LayerSpec struct {
	Type       string      `json:"type"`
	Activation string      `json:"activation,omitempty"`
	Weights    [][]float64 `json:"weights,omitempty"`
	Bias       []float64   `json:"bias,omitempty"`

	Gamma    []float64 `json:"gamma,omitempty"`
	Beta     []float64 `json:"beta,omitempty"`
	Mean     []float64 `json:"mean,omitempty"`
	Variance []float64 `json:"variance,omitempty"`
	Epsilon  float64   `json:"epsilon,omitempty"`
}

// FeedForwardSpec is the JSON weights file.
type FeedForwardSpec struct {
	Layers []LayerSpec `json:"layers"`
}

type layer interface {
	forward(x *mat.VecDense) *mat.VecDense
}

type dense struct {
	w          *mat.Dense
	b          *mat.VecDense
	activation string
}

func (l *dense) forward(x *mat.VecDense) *mat.VecDense {
	rows, _ := l.w.Dims()
	y := mat.NewVecDense(rows, nil)
	y.MulVec(l.w, x)
	y.AddVec(y, l.b)

	data := y.RawVector().Data
	switch l.activation {
	case ActivationReLU:
		for i, v := range data {
			data[i] = math.Max(0, v)
		}
	case ActivationSoftmax:
		softmax(data)
	}
	return y
}

type batchNorm struct {
	scale, shift []float64
}

func (l *batchNorm) forward(x *mat.VecDense) *mat.VecDense {
	y := mat.VecDenseCopyOf(x)
	data := y.RawVector().Data
	for i := range data {
		data[i] = data[i]*l.scale[i] + l.shift[i]
	}
	return y
}

func softmax(x []float64) {
	top := floats.Max(x)
	for i, v := range x {
		x[i] = math.Exp(v - top)
	}
	floats.Scale(1/floats.Sum(x), x)
}

// FeedForward is a dense network evaluated with gonum. Dropout is an identity
// at inference and has no layer.
type FeedForward struct {
	layers []layer
}

// NewFeedForward validates spec and builds the network. The first layer must
// accept VectorSize inputs and the last must produce len(Genres) outputs.
func NewFeedForward(spec FeedForwardSpec) (*FeedForward, error) {
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrBadModel)
	}

	width := VectorSize
	var layers []layer
	for i, ls := range spec.Layers {
		switch ls.Type {
		case LayerDense:
			l, err := newDense(ls, width)
			if err != nil {
				return nil, fmt.Errorf("%w: layer %d: %v", ErrBadModel, i, err)
			}
			layers = append(layers, l)
			width = len(ls.Bias)
		case LayerBatchNorm:
			l, err := newBatchNorm(ls, width)
			if err != nil {
				return nil, fmt.Errorf("%w: layer %d: %v", ErrBadModel, i, err)
			}
			layers = append(layers, l)
		default:
			return nil, fmt.Errorf("%w: layer %d: unknown type %q", ErrBadModel, i, ls.Type)
		}
	}
	if width != len(Genres) {
		return nil, fmt.Errorf("%w: output width %d, want %d", ErrBadModel, width, len(Genres))
	}
	return &FeedForward{layers: layers}, nil
}

func newDense(ls LayerSpec, in int) (*dense, error) {
	out := len(ls.Bias)
	if out == 0 || len(ls.Weights) != out {
		return nil, fmt.Errorf("dense has %d weight rows and %d biases", len(ls.Weights), out)
	}
	data := make([]float64, 0, out*in)
	for r, row := range ls.Weights {
		if len(row) != in {
			return nil, fmt.Errorf("dense row %d has %d inputs, want %d", r, len(row), in)
		}
		data = append(data, row...)
	}

	act := ls.Activation
	switch act {
	case "":
		act = ActivationLinear
	case ActivationLinear, ActivationReLU, ActivationSoftmax:
	default:
		return nil, fmt.Errorf("unknown activation %q", act)
	}

	return &dense{
		w:          mat.NewDense(out, in, data),
		b:          mat.NewVecDense(out, append([]float64(nil), ls.Bias...)),
		activation: act,
	}, nil
}

func newBatchNorm(ls LayerSpec, width int) (*batchNorm, error) {
	for name, v := range map[string][]float64{"gamma": ls.Gamma, "beta": ls.Beta, "mean": ls.Mean, "variance": ls.Variance} {
		if len(v) != width {
			return nil, fmt.Errorf("batchnorm %s has %d values, want %d", name, len(v), width)
		}
	}
	eps := ls.Epsilon
	if eps == 0 {
		eps = 1e-3
	}

	// Fold (x-mean)/sqrt(var+eps)*gamma+beta into x*scale+shift
	l := &batchNorm{scale: make([]float64, width), shift: make([]float64, width)}
	for i := 0; i < width; i++ {
		if ls.Variance[i]+eps <= 0 {
			return nil, fmt.Errorf("batchnorm variance %d is negative", i)
		}
		l.scale[i] = ls.Gamma[i] / math.Sqrt(ls.Variance[i]+eps)
		l.shift[i] = ls.Beta[i] - ls.Mean[i]*l.scale[i]
	}
	return l, nil
}

// ReadFeedForward decodes JSON weights from r.
func ReadFeedForward(r io.Reader) (*FeedForward, error) {
	var spec FeedForwardSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModel, err)
	}
	return NewFeedForward(spec)
}

// LoadFeedForward loads JSON weights from path.
func LoadFeedForward(path string) (*FeedForward, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return ReadFeedForward(f)
}

// Classify runs the network on v.
func (m *FeedForward) Classify(ctx context.Context, v Vector) (int, []float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	x := mat.NewVecDense(VectorSize, append([]float64(nil), v[:]...))
	for _, l := range m.layers {
		x = l.forward(x)
	}

	probs := append([]float64(nil), x.RawVector().Data...)
	return floats.MaxIdx(probs), probs, nil
}
