// Package features derives the fixed audio descriptor vector from decoded
// samples.
//
// The formulas and constants are empirically tuned heuristics, not DSP
// measurements. Changing any of them shifts every downstream score.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/nzoschke/musicagent/pkg/audio"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// NumBlocks is the number of envelope blocks the signal is split into.
	NumBlocks = 200
	// SpectralChunkSize is the chunk length of the coarse spectral proxy.
	SpectralChunkSize = 2048
	// MaxSpectralChunks caps how many chunks feed the spectral proxy.
	MaxSpectralChunks = 10
)

// ErrInvalidAudio is returned when a decoded stream cannot be analysed.
var ErrInvalidAudio = errors.New("invalid audio")

// Descriptors is the fixed descriptor vector of a track.
type Descriptors struct {
	Tempo            float64 `json:"tempo"`             // BPM in [60, 180]
	Energy           float64 `json:"energy"`            // [0, 1]
	Danceability     float64 `json:"danceability"`      // [0, 1]
	Valence          float64 `json:"valence"`           // [0, 1]
	Acousticness     float64 `json:"acousticness"`      // [0, 1]
	Loudness         float64 `json:"loudness"`          // dB
	Speechiness      float64 `json:"speechiness"`       // [0, 1]
	Instrumentalness float64 `json:"instrumentalness"`  // [0, 1]
	SpectralCentroid float64 `json:"spectral_centroid"` // Hz-scaled proxy
	DynamicRange     float64 `json:"dynamic_range"`     // ratio >= 1
}

// Envelope holds the intermediate statistics observed from channel 0.
type Envelope struct {
	Duration      float64   `json:"duration"`
	SampleRate    int       `json:"sample_rate"`
	Peaks         []float64 `json:"peaks"` // normalised mean-absolute amplitude per block
	RMS           []float64 `json:"rms"`
	AvgEnergy     float64   `json:"avg_energy"`
	SpectralData  []float64 `json:"spectral_data"`
	ZeroCrossings int       `json:"zero_crossings"`
}

// Observe computes the block envelope, spectral proxy and zero crossings.
func Observe(d *audio.Decoded) (*Envelope, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: no audio", ErrInvalidAudio)
	}
	if d.SampleRate <= 0 || d.Duration <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d, duration %.3fs", ErrInvalidAudio, d.SampleRate, d.Duration)
	}
	raw := d.Samples
	if len(raw) < NumBlocks {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", ErrInvalidAudio, len(raw), NumBlocks)
	}

	// Trailing samples beyond NumBlocks*blockSize are dropped
	blockSize := len(raw) / NumBlocks
	peaks := make([]float64, NumBlocks)
	rms := make([]float64, NumBlocks)
	for i := 0; i < NumBlocks; i++ {
		var sum, sq float64
		for _, s := range raw[i*blockSize : (i+1)*blockSize] {
			v := float64(s)
			sum += math.Abs(v)
			sq += v * v
		}
		peaks[i] = sum / float64(blockSize)
		rms[i] = math.Sqrt(sq / float64(blockSize))
	}

	// A silent clip normalises to all zeros rather than NaN
	if top := floats.Max(peaks); top > 0 {
		for i := range peaks {
			peaks[i] /= top
		}
	}

	numChunks := min(MaxSpectralChunks, len(raw)/SpectralChunkSize)
	spectral := make([]float64, numChunks)
	for i := 0; i < numChunks; i++ {
		var sum float64
		for _, s := range raw[i*SpectralChunkSize : (i+1)*SpectralChunkSize] {
			sum += math.Abs(float64(s))
		}
		spectral[i] = sum / SpectralChunkSize
	}

	return &Envelope{
		Duration:      d.Duration,
		SampleRate:    d.SampleRate,
		Peaks:         peaks,
		RMS:           rms,
		AvgEnergy:     stat.Mean(peaks, nil),
		SpectralData:  spectral,
		ZeroCrossings: ZeroCrossings(raw),
	}, nil
}

// ZeroCrossings counts sign changes between consecutive samples.
// Zero counts as positive.
func ZeroCrossings(raw []float32) int {
	n := 0
	for i := 1; i < len(raw); i++ {
		if (raw[i] >= 0) != (raw[i-1] >= 0) {
			n++
		}
	}
	return n
}

// Extract observes d and derives its descriptors.
func Extract(d *audio.Decoded) (Descriptors, error) {
	env, err := Observe(d)
	if err != nil {
		return Descriptors{}, err
	}
	return Derive(env), nil
}

// Derive computes descriptors from an observed envelope.
func Derive(env *Envelope) Descriptors {
	peaks := env.Peaks
	avgEnergy := env.AvgEnergy
	variance := popVariance(peaks, avgEnergy)
	stdDev := math.Sqrt(variance)

	tempo := EstimateTempo(peaks, avgEnergy, env.Duration)

	silence := 0
	for _, p := range peaks {
		if p < 0.08 {
			silence++
		}
	}
	silenceRatio := float64(silence) / float64(len(peaks))
	var energyVariation float64
	if avgEnergy > 0 {
		energyVariation = stdDev / avgEnergy
	}
	var speechiness float64
	if silenceRatio > 0.3 && energyVariation > 0.4 {
		speechiness = math.Min(0.66, 0.25+energyVariation*0.3)
	} else {
		speechiness = math.Min(0.25, energyVariation*0.2)
	}

	var spectralVariation float64
	if len(env.SpectralData) > 0 {
		spectralVariation = math.Sqrt(popVariance(env.SpectralData, stat.Mean(env.SpectralData, nil)))
	}
	var instrumentalness float64
	if speechiness < 0.15 {
		instrumentalness = math.Min(0.9, 0.4+spectralVariation*2)
	} else {
		instrumentalness = math.Max(0.05, 0.4-speechiness)
	}

	spectralCentroid := (float64(env.ZeroCrossings) / env.Duration / float64(env.SampleRate)) * 10000

	avgRMS := stat.Mean(env.RMS, nil)
	energy := math.Min(1, avgRMS*2.5)

	highFreqRatio := spectralCentroid / 5000
	var acousticness float64
	if energy < 0.5 && highFreqRatio < 0.8 {
		acousticness = math.Min(0.95, 0.6+(1-energy)*0.4)
	} else {
		acousticness = math.Max(0.05, 0.4-energy*0.3)
	}

	rhythmicConsistency := 1 - stdDev*2
	danceTempo := 0.1
	if tempo > 90 {
		danceTempo = 0.3
	}
	danceability := clamp(energy*0.4+rhythmicConsistency*0.3+danceTempo, 0.15, 0.95)

	valenceTempo := 0.1
	if tempo > 100 {
		valenceTempo = 0.25
	}
	valence := clamp(energy*0.3+valenceTempo+(1-acousticness)*0.2+variance*0.8, 0.05, 0.95)

	loudness := -40 + avgRMS*35 + energy*10

	return Descriptors{
		Tempo:            tempo,
		Energy:           energy,
		Danceability:     danceability,
		Valence:          valence,
		Acousticness:     acousticness,
		Loudness:         loudness,
		Speechiness:      speechiness,
		Instrumentalness: instrumentalness,
		SpectralCentroid: spectralCentroid,
		DynamicRange:     DynamicRange(peaks),
	}
}

// DynamicRange is the ratio of the loudest block to the quietest block above
// 0.01. The denominator is floored at 0.01 and the result at 1.
func DynamicRange(peaks []float64) float64 {
	if len(peaks) == 0 {
		return 1
	}
	minPeak := 0.0
	for _, p := range peaks {
		if p > 0.01 && (minPeak == 0 || p < minPeak) {
			minPeak = p
		}
	}
	return math.Max(1, floats.Max(peaks)/math.Max(minPeak, 0.01))
}

// EstimateTempo picks local maxima above 1.2x the mean envelope, averages the
// block distance between them (20 when fewer than two peaks) and converts it
// to BPM clamped to [60, 180].
func EstimateTempo(peaks []float64, avgEnergy, duration float64) float64 {
	var intervals []float64
	last := 0
	for i := 1; i < len(peaks)-1; i++ {
		if peaks[i] > peaks[i-1] && peaks[i] > peaks[i+1] && peaks[i] > avgEnergy*1.2 {
			if last > 0 {
				intervals = append(intervals, float64(i-last))
			}
			last = i
		}
	}

	avgInterval := 20.0
	if len(intervals) > 0 {
		avgInterval = stat.Mean(intervals, nil)
	}
	bpm := (60 / (avgInterval * (duration / float64(len(peaks))))) * 60
	return clamp(bpm, 60, 180)
}

// popVariance is the population variance of x around mean.
func popVariance(x []float64, mean float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(x))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
