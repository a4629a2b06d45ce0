package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateClickTrain(t *testing.T) {
	// Clicks every 0.5 seconds: 120 BPM. The buffer is kept short enough
	// that the half-tempo lag falls outside the autocorrelation search
	// window, so the estimate is unambiguous.
	buf := clickBuffer(t, 44100, 1.8, []float64{0.0, 0.5, 1.0, 1.5})

	result := NewTempoEstimator().Estimate(buf)

	assert.Equal(t, 120, result.BPM)
	assert.Greater(t, result.Confidence, 0.0)
	assert.Equal(t, "fast", result.Category)
}

func TestEstimateFallback(t *testing.T) {
	// Too short for an autocorrelation envelope: fall back instead of
	// failing, with zero confidence flagging the estimate as meaningless
	buf, err := NewSampleBuffer(make([]float32, 5000), 44100)
	require.NoError(t, err)

	result := NewTempoEstimator().Estimate(buf)

	assert.Equal(t, 120, result.BPM)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestEstimateSilence(t *testing.T) {
	// A silent buffer has no periodicity; same fallback
	buf := silentBuffer(t, 44100, 4.0)

	result := NewTempoEstimator().Estimate(buf)

	assert.Equal(t, 120, result.BPM)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestEstimateDeterministic(t *testing.T) {
	buf := clickBuffer(t, 44100, 1.8, []float64{0.0, 0.5, 1.0, 1.5})
	estimator := NewTempoEstimator()

	first := estimator.Estimate(buf)
	second := estimator.Estimate(buf)

	assert.Equal(t, first, second)
}

func TestClassifyTempo(t *testing.T) {
	cases := []struct {
		bpm      float64
		category string
	}{
		{40, "very_slow"},
		{75, "slow"},
		{100, "moderate"},
		{130, "fast"},
		{170, "very_fast"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.category, classifyTempo(tc.bpm))
	}
}

func TestAutocorrelate(t *testing.T) {
	// Perfectly periodic signal: the normalized autocorrelation is 1 at
	// lag 0 and at multiples of the period
	signal := make([]float64, 64)
	for i := range signal {
		if i%8 == 0 {
			signal[i] = 1.0
		}
	}

	autocorr := autocorrelate(signal, 32)
	require.Len(t, autocorr, 32)

	assert.InDelta(t, 1.0, autocorr[0], 1e-9)
	assert.InDelta(t, 1.0, autocorr[8], 1e-9)
	assert.InDelta(t, 0.0, autocorr[4], 1e-9)
}
