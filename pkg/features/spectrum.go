package features

import (
	"math"

	"github.com/nzoschke/musicagent/pkg/audio"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SpectrumFFTSize is the STFT window of the spectral summary.
	SpectrumFFTSize = 2048
	// MaxSpectrumFrames caps the frames analysed per track. Frames are
	// spread evenly over the clip.
	MaxSpectrumFrames = 256
	// RolloffFraction is the share of spectral magnitude below the rolloff.
	RolloffFraction = 0.85
)

// Spectrum is an FFT based summary of channel 0. It is informational and is
// not used by classification.
type Spectrum struct {
	CentroidHz float64 `json:"centroid_hz"`
	RolloffHz  float64 `json:"rolloff_hz"`
	Frames     int     `json:"frames"`
}

// AnalyzeSpectrum averages a Hann windowed STFT magnitude spectrum and
// reports its centroid and rolloff. It returns nil for clips shorter than one
// window.
func AnalyzeSpectrum(d *audio.Decoded) *Spectrum {
	if d == nil || d.SampleRate <= 0 || len(d.Samples) < SpectrumFFTSize {
		return nil
	}

	span := len(d.Samples) - SpectrumFFTSize
	numFrames := min(MaxSpectrumFrames, span/(SpectrumFFTSize/2)+1)
	hop := 0
	if numFrames > 1 {
		hop = span / (numFrames - 1)
	}

	window := hannWindow(SpectrumFFTSize)
	fft := fourier.NewFFT(SpectrumFFTSize)
	numBins := SpectrumFFTSize/2 + 1
	mean := make([]float64, numBins)
	frame := make([]float64, SpectrumFFTSize)
	var coeffs []complex128

	for i := 0; i < numFrames; i++ {
		start := i * hop
		for j := range frame {
			frame[j] = float64(d.Samples[start+j]) * window[j]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for j := 0; j < numBins; j++ {
			re, im := real(coeffs[j]), imag(coeffs[j])
			mean[j] += math.Sqrt(re*re+im*im) / float64(numFrames)
		}
	}

	binHz := float64(d.SampleRate) / SpectrumFFTSize
	var total, weighted float64
	for j, m := range mean {
		total += m
		weighted += m * float64(j) * binHz
	}
	s := &Spectrum{Frames: numFrames}
	if total == 0 {
		return s
	}
	s.CentroidHz = weighted / total

	var acc float64
	for j, m := range mean {
		acc += m
		if acc >= total*RolloffFraction {
			s.RolloffHz = float64(j) * binHz
			break
		}
	}
	return s
}

// hannWindow generates a Hann window of given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}
