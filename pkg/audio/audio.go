// Package audio decodes audio payloads into channel-0 float samples.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrDecode is returned when a payload is not decodable audio.
var ErrDecode = errors.New("decode audio")

// Decoded is a decoded audio stream. Only channel 0 is kept.
type Decoded struct {
	SampleRate int       // SampleRate is the sample rate in Hz.
	Duration   float64   // Duration is the stream length in seconds.
	Channels   int       // Channels is the channel count of the source.
	Samples    []float32 // Samples holds channel 0 in [-1, 1].
}

// Format identifies a supported container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Decoder decodes in-memory payloads. The zero value is ready to use.
type Decoder struct{}

// Decode sniffs the payload format and decodes it.
func (Decoder) Decode(ctx context.Context, data []byte) (*Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		d   *Decoded
		err error
	)
	switch Sniff(data) {
	case FormatWAV:
		d, err = decodeWAV(data)
	case FormatMP3:
		d, err = decodeMP3(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format", ErrDecode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(d.Samples) == 0 || d.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: empty stream", ErrDecode)
	}
	d.Duration = float64(len(d.Samples)) / float64(d.SampleRate)
	return d, nil
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(ctx context.Context, path string) (*Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return Decoder{}.Decode(ctx, data)
}

// Sniff detects the container format from the leading bytes.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// IsSupportedExt returns true if the file extension is a decodable format.
func IsSupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav":
		return true
	default:
		return false
	}
}

// IsAudioPath returns true if path has a supported audio extension.
func IsAudioPath(path string) bool {
	return IsSupportedExt(filepath.Ext(path))
}

// decodeMP3 decodes to channel 0 float32 samples.
func decodeMP3(data []byte) (*Decoded, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create MP3 decoder: %w", err)
	}

	// 16-bit signed stereo, 4 bytes per frame
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decode MP3: %w", err)
	}

	frames := len(pcm) / 4
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		samples[i] = float32(left) / 32768.0
	}

	return &Decoded{
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		Samples:    samples,
	}, nil
}

// WAV format tags.
const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// decodeWAV decodes integer PCM or 32-bit float WAV to channel 0 float32
// samples.
func decodeWAV(data []byte) (*Decoded, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	format := decoder.WavAudioFormat
	switch {
	case channels < 1:
		return nil, fmt.Errorf("unsupported WAV layout: %d channels", channels)
	case format == wavFormatFloat && bitDepth != 32:
		return nil, fmt.Errorf("unsupported WAV float depth: %d bits", bitDepth)
	case format != wavFormatPCM && format != wavFormatFloat && format != wavFormatExtensible:
		return nil, fmt.Errorf("unsupported WAV format tag %d", format)
	case bitDepth < 8 || bitDepth > 32:
		return nil, fmt.Errorf("unsupported WAV layout: %d bits", bitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}

	scale := float32(int64(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		v := buf.Data[i*channels]
		switch {
		case format == wavFormatFloat:
			// The decoder hands back the raw IEEE bits as int32
			samples[i] = math.Float32frombits(uint32(int32(v)))
		case bitDepth == 8:
			// 8-bit WAV is unsigned
			samples[i] = float32(v-128) / scale
		default:
			samples[i] = float32(v) / scale
		}
	}

	return &Decoded{
		SampleRate: int(decoder.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}, nil
}
