package loudness

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amplitude float64, rate int, d time.Duration) []float64 {
	n := int(d.Seconds() * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// writeWAV encodes planar samples as 16-bit PCM.
func writeWAV(t *testing.T, rate int, channels ...[]float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	n := len(channels)
	data := make([]int, len(channels[0])*n)
	for c, ch := range channels {
		for i, s := range ch {
			data[i*n+c] = int(math.Round(s * 32767))
		}
	}

	enc := wav.NewEncoder(f, rate, 16, n, formatPCM)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: n, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestMeasureSine(t *testing.T) {
	path := writeWAV(t, 48000, sine(1000, 0.5, 48000, 2*time.Second))

	info, err := Measure(path)
	require.NoError(t, err)

	assert.InDelta(t, -6.02, info.PeakDB, 0.01)
	require.NotNil(t, info.LUFS)
	assert.InDelta(t, -9.03, *info.LUFS, 0.2)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 2*time.Second, info.Duration)
}

func TestMeasureStereoAddsChannels(t *testing.T) {
	tone := sine(1000, 0.5, 44100, 2*time.Second)
	path := writeWAV(t, 44100, tone, tone)

	info, err := Measure(path)
	require.NoError(t, err)

	require.NotNil(t, info.LUFS)
	assert.InDelta(t, -6.02, *info.LUFS, 0.2)
	assert.Equal(t, 2, info.Channels)
}

func TestMeasureSilence(t *testing.T) {
	path := writeWAV(t, 48000, make([]float64, 48000))

	info, err := Measure(path)
	require.NoError(t, err)

	assert.True(t, math.IsInf(info.PeakDB, -1))
	assert.Nil(t, info.LUFS)
}

func TestMeasureShorterThanOneBlock(t *testing.T) {
	path := writeWAV(t, 48000, sine(1000, 0.5, 48000, 300*time.Millisecond))

	info, err := Measure(path)
	require.NoError(t, err)

	assert.InDelta(t, -6.02, info.PeakDB, 0.01)
	assert.Nil(t, info.LUFS)
}

func TestMeasureRelativeGateIgnoresQuietTail(t *testing.T) {
	rate := 48000
	loud := sine(1000, 0.5, rate, 2*time.Second)
	quiet := sine(1000, 0.005, rate, 2*time.Second)

	info, err := Analyze([][]float64{append(loud, quiet...)}, rate)
	require.NoError(t, err)

	require.NotNil(t, info.LUFS)
	assert.InDelta(t, -9.03, *info.LUFS, 0.5)
}

func TestMeasureRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data"), 0o644))

	_, err := Measure(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestMeasureMissingFile(t *testing.T) {
	_, err := Measure(filepath.Join(t.TempDir(), "absent.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeinterleave(t *testing.T) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: 8000},
		Data:   []int{16384, -16384, 0, 32767},
	}

	out, err := deinterleave(buf, formatPCM, 16)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0}, out[0])
	assert.InDelta(t, -0.5, out[1][0], 1e-9)
	assert.InDelta(t, 1, out[1][1], 1e-4)
}

func TestDeinterleaveFloat(t *testing.T) {
	bits := func(f float32) int { return int(int32(math.Float32bits(f))) }
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 8000},
		Data:   []int{bits(0.25), bits(-1)},
	}

	out, err := deinterleave(buf, formatFloat, 32)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -1}, out[0])
}

func TestDeinterleaveUnsupported(t *testing.T) {
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1}, Data: []int{0}}

	tests := []struct {
		name     string
		format   int
		bitDepth int
	}{
		{"64-bit float", formatFloat, 64},
		{"12-bit pcm", formatPCM, 12},
		{"a-law", 6, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deinterleave(buf, tt.format, tt.bitDepth)
			require.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestChannelWeights(t *testing.T) {
	assert.Equal(t, []float64{1}, channelWeights(1))
	assert.Equal(t, []float64{1, 1, 1}, channelWeights(3))
	assert.Equal(t, []float64{1, 1, 1.41, 1.41}, channelWeights(4))
	assert.Equal(t, []float64{1, 1, 1, 0, 1.41, 1.41}, channelWeights(6))
	assert.Len(t, channelWeights(8), 8)
}
