package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleBufferValidation(t *testing.T) {
	_, err := NewSampleBuffer(nil, 44100)
	assert.Error(t, err)

	_, err = NewSampleBuffer(make([]float32, 100), 0)
	assert.Error(t, err)

	_, err = NewSampleBuffer(make([]float32, 100), -1)
	assert.Error(t, err)

	buf, err := NewSampleBuffer(make([]float32, 100), 44100)
	require.NoError(t, err)
	assert.Equal(t, 100, buf.Len())
	assert.Equal(t, 44100, buf.SampleRate())
}

func TestSampleBufferAccess(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	buf, err := NewSampleBuffer(samples, 44100)
	require.NoError(t, err)

	assert.Equal(t, 1, buf.NumChannels())

	data, err := buf.ChannelData(0)
	require.NoError(t, err)
	assert.Equal(t, samples, data)

	// Engine buffers are strictly mono; any other channel is an error,
	// not an alias of channel 0
	_, err = buf.ChannelData(1)
	assert.Error(t, err)
	_, err = buf.ChannelData(-1)
	assert.Error(t, err)
}

func TestSampleBufferTiming(t *testing.T) {
	buf, err := NewSampleBuffer(make([]float32, 22050), 44100)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, buf.Duration(), 1e-9)
	assert.InDelta(t, 0.25, buf.SampleToTime(11025), 1e-9)
	assert.Equal(t, 0.0, buf.SampleToTime(0))
}
