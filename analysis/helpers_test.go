package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// silentBuffer returns an all-zero mono buffer
func silentBuffer(t *testing.T, sampleRate int, seconds float64) *SampleBuffer {
	t.Helper()

	buf, err := NewSampleBuffer(make([]float32, int(seconds*float64(sampleRate))), sampleRate)
	require.NoError(t, err)
	return buf
}

// clickBuffer returns a silent buffer with unit impulses at the given
// times
func clickBuffer(t *testing.T, sampleRate int, seconds float64, clickTimes []float64) *SampleBuffer {
	t.Helper()

	samples := make([]float32, int(seconds*float64(sampleRate)))
	for _, ct := range clickTimes {
		idx := int(ct * float64(sampleRate))
		require.Less(t, idx, len(samples))
		samples[idx] = 1.0
	}

	buf, err := NewSampleBuffer(samples, sampleRate)
	require.NoError(t, err)
	return buf
}

// sineBuffer returns a buffer filled with a steady sine tone
func sineBuffer(t *testing.T, sampleRate int, seconds, freq, amp float64) *SampleBuffer {
	t.Helper()

	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * freq * float64(i) / float64(sampleRate)
		samples[i] = float32(amp * math.Sin(phase))
	}

	buf, err := NewSampleBuffer(samples, sampleRate)
	require.NoError(t, err)
	return buf
}

// progressRecorder collects callback values for assertions. Callbacks
// may arrive from another goroutine in worker scenarios, but within this
// package analysis runs on the calling goroutine, so plain appends are
// fine.
type progressRecorder struct {
	values []float64
}

func (pr *progressRecorder) record(progress float64) {
	pr.values = append(pr.values, progress)
}

// assertProgressWellFormed checks the contract every analysis call
// makes: values in [0, 1], non-decreasing, terminating at exactly 1.0
func assertProgressWellFormed(t *testing.T, values []float64) {
	t.Helper()

	require.NotEmpty(t, values)
	prev := 0.0
	for _, v := range values {
		require.GreaterOrEqual(t, v, prev)
		require.LessOrEqual(t, v, 1.0)
		prev = v
	}
	require.Equal(t, 1.0, values[len(values)-1])
}
