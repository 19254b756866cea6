package analysis

// WaveformPixelsPerSec is the resolution of result waveforms.
const WaveformPixelsPerSec = 100

// Waveform contains downsampled waveform data for visualization.
type Waveform struct {
	PixelsPerSec int       `json:"pixels_per_sec"`
	Peaks        []float64 `json:"peaks"`
	Troughs      []float64 `json:"troughs"`
}

// GenerateWaveform downsamples samples to per-pixel max and min values.
// It returns nil when there is less than one pixel of audio.
func GenerateWaveform(samples []float32, sampleRate, pixelsPerSec int) *Waveform {
	if sampleRate <= 0 || pixelsPerSec <= 0 {
		return nil
	}
	samplesPerPixel := max(1, sampleRate/pixelsPerSec)

	numPixels := len(samples) / samplesPerPixel
	if numPixels == 0 {
		return nil
	}

	peaks := make([]float64, numPixels)
	troughs := make([]float64, numPixels)
	for i := 0; i < numPixels; i++ {
		hi, lo := float32(-1), float32(1)
		for _, s := range samples[i*samplesPerPixel : (i+1)*samplesPerPixel] {
			hi = max(hi, s)
			lo = min(lo, s)
		}
		peaks[i] = float64(hi)
		troughs[i] = float64(lo)
	}

	return &Waveform{
		PixelsPerSec: pixelsPerSec,
		Peaks:        peaks,
		Troughs:      troughs,
	}
}
