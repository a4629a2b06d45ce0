// Package transcode decodes audio files into the mono float32 PCM the
// analysis engine consumes. MP3 is decoded with hajimehoshi/go-mp3; WAV
// is parsed directly (PCM 16-bit only).
package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// AudioData is a decoded, downmixed audio file
type AudioData struct {
	Samples    []float32     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // Channel count of the source, before downmix
	Duration   time.Duration `json:"duration"`
}

// Default MP3 encoder delay when the LAME header is absent or unreadable
const defaultEncoderDelay = 576

// LoadMono decodes a file and downmixes it to mono
func LoadMono(path string) (*AudioData, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return loadMP3(path)
	case ".wav":
		return loadWAV(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}
}

// loadMP3 decodes an MP3 file to mono float32, skipping the encoder
// delay so sample timestamps line up with the source material
func loadMP3(path string) (*AudioData, error) {
	delay := readLAMEEncoderDelay(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	sampleRate := decoder.SampleRate()

	// go-mp3 outputs 16-bit signed stereo, 4 bytes per sample pair
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	numPairs := len(pcm) / 4
	samples := make([]float32, numPairs)
	for i := 0; i < numPairs; i++ {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2:]))
		samples[i] = (float32(left) + float32(right)) / 2.0 / 32768.0
	}

	if len(samples) > delay {
		samples = samples[delay:]
	}

	logging.Debug("decoded mp3", logging.Fields{
		"path":        path,
		"sample_rate": sampleRate,
		"samples":     len(samples),
		"delay":       delay,
	})

	return &AudioData{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   2,
		Duration:   time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second)),
	}, nil
}

// readLAMEEncoderDelay reads the encoder delay from a LAME/Xing header
// if present. The LAME header carries the delay as the upper 12 bits of
// a 24-bit field at offset 21 from the "LAME" marker.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	// Any Xing/LAME header lives in the first frame
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil || n < 200 {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	// Sanity check; typical values are 576-1152
	if delay < 0 || delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// loadWAV parses a RIFF/WAVE file with 16-bit PCM data and downmixes to
// mono float32
func loadWAV(path string) (*AudioData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		channels   int
		sampleRate int
		bitDepth   int
		pcm        []byte
	)

	// Walk the chunk list for fmt and data
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("malformed fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported WAV format code %d (PCM only)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if channels == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if bitDepth != 16 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d (16-bit only)", bitDepth)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("missing data chunk")
	}

	frameBytes := channels * 2
	numFrames := len(pcm) / frameBytes
	samples := make([]float32, numFrames)

	for i := 0; i < numFrames; i++ {
		sum := float32(0)
		for ch := 0; ch < channels; ch++ {
			offset := i*frameBytes + ch*2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[offset:])))
		}
		samples[i] = sum / float32(channels) / 32768.0
	}

	logging.Debug("decoded wav", logging.Fields{
		"path":        path,
		"sample_rate": sampleRate,
		"channels":    channels,
		"samples":     numFrames,
	})

	return &AudioData{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   time.Duration(float64(numFrames) / float64(sampleRate) * float64(time.Second)),
	}, nil
}
