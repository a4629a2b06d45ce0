package analysis

import (
	"fmt"
)

// SampleBuffer is an immutable view over mono PCM samples in roughly
// [-1, 1]. Buffers handed to the engine are always pre-downmixed to mono
// by the caller; the engine never retains a buffer past a call.
type SampleBuffer struct {
	samples    []float32
	sampleRate int
}

// NewSampleBuffer wraps mono samples at the given sample rate. The
// samples are not copied; the caller must not mutate them while an
// analysis call is running.
func NewSampleBuffer(samples []float32, sampleRate int) (*SampleBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty sample buffer")
	}

	return &SampleBuffer{
		samples:    samples,
		sampleRate: sampleRate,
	}, nil
}

// Len returns the number of samples
func (b *SampleBuffer) Len() int {
	return len(b.samples)
}

// SampleRate returns the sample rate in Hz
func (b *SampleBuffer) SampleRate() int {
	return b.sampleRate
}

// Duration returns the buffer duration in seconds
func (b *SampleBuffer) Duration() float64 {
	return float64(len(b.samples)) / float64(b.sampleRate)
}

// NumChannels returns the channel count, always 1 for engine buffers
func (b *SampleBuffer) NumChannels() int {
	return 1
}

// ChannelData returns the raw samples for the given channel. Buffers
// crossing the engine boundary are always mono, so any channel other
// than 0 fails loudly instead of aliasing channel 0.
func (b *SampleBuffer) ChannelData(channel int) ([]float32, error) {
	if channel != 0 {
		return nil, fmt.Errorf("channel %d out of range: engine buffers are mono", channel)
	}
	return b.samples, nil
}

// SampleToTime converts a sample index to seconds
func (b *SampleBuffer) SampleToTime(sample int) float64 {
	return float64(sample) / float64(b.sampleRate)
}
