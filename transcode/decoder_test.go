package transcode

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a minimal RIFF/WAVE file with 16-bit PCM interleaved
// frames
func writeWAV(t *testing.T, path string, sampleRate, channels int, frames [][]int16) {
	t.Helper()

	dataSize := len(frames) * channels * 2
	buf := make([]byte, 0, 44+dataSize)

	put16 := func(v int) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	}
	put32 := func(v int) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	}

	buf = append(buf, "RIFF"...)
	buf = append(buf, put32(36+dataSize)...)
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = append(buf, put32(16)...)
	buf = append(buf, put16(1)...) // PCM
	buf = append(buf, put16(channels)...)
	buf = append(buf, put32(sampleRate)...)
	buf = append(buf, put32(sampleRate*channels*2)...) // Byte rate
	buf = append(buf, put16(channels*2)...)            // Block align
	buf = append(buf, put16(16)...)                    // Bit depth

	buf = append(buf, "data"...)
	buf = append(buf, put32(dataSize)...)
	for _, frame := range frames {
		require.Len(t, frame, channels)
		for _, sample := range frame {
			buf = append(buf, put16(int(sample))...)
		}
	}

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestLoadMonoWAVStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 44100, 2, [][]int16{
		{1000, 3000},
		{-2000, 2000},
		{32767, 32767},
	})

	audio, err := LoadMono(path)
	require.NoError(t, err)

	assert.Equal(t, 44100, audio.SampleRate)
	assert.Equal(t, 2, audio.Channels)
	require.Len(t, audio.Samples, 3)

	// Channels average into mono, scaled to [-1, 1]
	assert.InDelta(t, 2000.0/32768.0, audio.Samples[0], 1e-6)
	assert.InDelta(t, 0.0, audio.Samples[1], 1e-6)
	assert.InDelta(t, 32767.0/32768.0, audio.Samples[2], 1e-6)
}

func TestLoadMonoWAVMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeWAV(t, path, 22050, 1, [][]int16{{16384}, {-16384}})

	audio, err := LoadMono(path)
	require.NoError(t, err)

	assert.Equal(t, 22050, audio.SampleRate)
	assert.Equal(t, 1, audio.Channels)
	require.Len(t, audio.Samples, 2)
	assert.InDelta(t, 0.5, audio.Samples[0], 1e-6)
	assert.InDelta(t, -0.5, audio.Samples[1], 1e-6)
}

func TestLoadMonoUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.flac")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := LoadMono(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
}

func TestLoadMonoMalformedWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFxxxxJUNK"), 0o644))

	_, err := LoadMono(path)
	assert.Error(t, err)
}

func TestLoadMonoMissingFile(t *testing.T) {
	_, err := LoadMono(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestReadLAMEEncoderDelayDefault(t *testing.T) {
	// No LAME header anywhere: the standard encoder delay applies
	path := filepath.Join(t.TempDir(), "plain.mp3")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))

	assert.Equal(t, defaultEncoderDelay, readLAMEEncoderDelay(path))
}
