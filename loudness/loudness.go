// Package loudness measures the sample peak and the integrated loudness of
// uncompressed WAV audio.
//
// Integrated loudness follows ITU-R BS.1770: the signal is K-weighted, the
// mean square of each channel is taken over 400 ms blocks overlapping by
// 75%, and blocks are gated first at -70 LUFS and then at 10 LU below the
// loudness of the remaining blocks.
package loudness

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrUnsupportedFormat is returned for input that is not PCM or IEEE
	// float WAV with a bit depth the meter understands.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// WAV format tags.
const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

const (
	absoluteGate = -70.0
	relativeGate = -10.0

	windowsPerBlock = 4
)

// Info is the result of a measurement.
type Info struct {
	// PeakDB is the highest absolute sample value in dBFS. Silence yields
	// negative infinity.
	PeakDB float64

	// LUFS is the integrated loudness. It is nil when no block survives
	// gating, e.g. for silence or input shorter than one block.
	LUFS *float64

	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Measure reads the WAV file at path and measures it.
func Measure(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := MeasureReader(f)
	if err != nil {
		return nil, fmt.Errorf("measuring %s: %w", path, err)
	}
	return info, nil
}

// MeasureReader measures WAV audio read from r.
func MeasureReader(r io.ReadSeeker) (*Info, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %w", ErrUnsupportedFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding samples: %w", err)
	}

	channels, err := deinterleave(buf, int(d.WavAudioFormat), int(d.BitDepth))
	if err != nil {
		return nil, err
	}
	return Analyze(channels, int(d.SampleRate))
}

// Analyze measures planar samples in [-1, 1], one slice per channel.
func Analyze(channels [][]float64, sampleRate int) (*Info, error) {
	if len(channels) == 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%d channels at %d Hz: %w", len(channels), sampleRate, ErrUnsupportedFormat)
	}

	frames := len(channels[0])
	info := &Info{
		PeakDB:     peakDB(channels),
		LUFS:       integrated(channels, sampleRate),
		SampleRate: sampleRate,
		Channels:   len(channels),
		Duration:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
	}
	return info, nil
}

func deinterleave(buf *audio.IntBuffer, format, bitDepth int) ([][]float64, error) {
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("missing channel layout: %w", ErrUnsupportedFormat)
	}

	var convert func(int) float64
	switch {
	case format == formatFloat && bitDepth == 32:
		convert = func(v int) float64 {
			return float64(math.Float32frombits(uint32(int32(v))))
		}
	case format == formatFloat:
		return nil, fmt.Errorf("%d-bit float: %w", bitDepth, ErrUnsupportedFormat)
	case format != formatPCM && format != formatExtensible:
		return nil, fmt.Errorf("format tag %#x: %w", format, ErrUnsupportedFormat)
	case bitDepth == 8:
		// 8-bit WAV is unsigned.
		convert = func(v int) float64 { return float64(v-128) / 128 }
	case bitDepth == 16 || bitDepth == 24 || bitDepth == 32:
		scale := float64(int64(1) << (bitDepth - 1))
		convert = func(v int) float64 { return float64(v) / scale }
	default:
		return nil, fmt.Errorf("%d-bit PCM: %w", bitDepth, ErrUnsupportedFormat)
	}

	n := buf.Format.NumChannels
	frames := len(buf.Data) / n
	out := make([][]float64, n)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames*n; i++ {
		out[i%n][i/n] = convert(buf.Data[i])
	}
	return out, nil
}

func peakDB(channels [][]float64) float64 {
	var peak float64
	for _, ch := range channels {
		for _, s := range ch {
			peak = max(peak, math.Abs(s))
		}
	}
	return 20 * math.Log10(peak)
}

// channelWeights returns the BS.1770 weight of each channel for the usual
// speaker layouts. The LFE channel of a 5.1 layout does not count.
func channelWeights(n int) []float64 {
	var w []float64
	switch n {
	case 4:
		w = []float64{1, 1, 1.41, 1.41}
	case 5:
		w = []float64{1, 1, 1, 1.41, 1.41}
	case 6:
		w = []float64{1, 1, 1, 0, 1.41, 1.41}
	default:
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	return w
}

// integrated returns the gated loudness of the signal, or nil when no block
// passes the gates.
func integrated(channels [][]float64, sampleRate int) *float64 {
	windowLen := sampleRate / 10
	if windowLen == 0 {
		return nil
	}
	windows := len(channels[0]) / windowLen
	if windows < windowsPerBlock {
		return nil
	}

	// Mean square of every 100 ms window, per channel.
	ms := make([][]float64, len(channels))
	for c, samples := range channels {
		kf := newKFilter(float64(sampleRate))
		ms[c] = make([]float64, windows)
		for w := range windows {
			var sum float64
			for _, s := range samples[w*windowLen : (w+1)*windowLen] {
				y := kf.process(s)
				sum += y * y
			}
			ms[c][w] = sum / float64(windowLen)
		}
	}

	weights := channelWeights(len(channels))
	blocks := make([]float64, 0, windows-windowsPerBlock+1)
	for start := 0; start+windowsPerBlock <= windows; start++ {
		var power float64
		for c := range ms {
			var sum float64
			for _, v := range ms[c][start : start+windowsPerBlock] {
				sum += v
			}
			power += weights[c] * sum / windowsPerBlock
		}
		blocks = append(blocks, power)
	}

	gated := gate(blocks, absoluteGate)
	if len(gated) == 0 {
		return nil
	}
	gated = gate(gated, lufs(mean(gated))+relativeGate)
	if len(gated) == 0 {
		return nil
	}

	l := lufs(mean(gated))
	return &l
}

func gate(blocks []float64, threshold float64) []float64 {
	var kept []float64
	for _, p := range blocks {
		if lufs(p) > threshold {
			kept = append(kept, p)
		}
	}
	return kept
}

func lufs(power float64) float64 {
	return -0.691 + 10*math.Log10(power)
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
