package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
)

func newTestOnsetDetector() *OnsetDetector {
	return NewOnsetDetector(DefaultConfig(), windowing.NewCache())
}

func TestDetectOnsetsTwoClicks(t *testing.T) {
	buf := clickBuffer(t, 44100, 4.0, []float64{1.0, 3.0})
	detector := newTestOnsetDetector()

	result, err := detector.Detect(context.Background(), buf, DefaultOnsetParams())
	require.NoError(t, err)

	require.Len(t, result.Samples, 2)
	require.Len(t, result.Times, 2)

	// The window-center correction puts onset times within one hop
	// (512/44100 s) of the click positions
	assert.InDelta(t, 1.0, result.Times[0], 0.0116)
	assert.InDelta(t, 3.0, result.Times[1], 0.0116)

	// Samples and times are parallel and strictly increasing
	for i, sample := range result.Samples {
		assert.InDelta(t, result.Times[i], buf.SampleToTime(sample), 1e-9)
		if i > 0 {
			assert.Greater(t, sample, result.Samples[i-1])
		}
	}
}

func TestDetectOnsetsMinDistance(t *testing.T) {
	// Clicks 100ms apart: both survive a 50ms minimum, the second is
	// suppressed by a 150ms minimum
	buf := clickBuffer(t, 44100, 3.0, []float64{1.0, 1.1})
	detector := newTestOnsetDetector()

	tight, err := detector.Detect(context.Background(), buf, OnsetParams{
		Sensitivity: 0.5,
		MinDistance: 0.05,
	})
	require.NoError(t, err)
	assert.Len(t, tight.Samples, 2)

	wide, err := detector.Detect(context.Background(), buf, OnsetParams{
		Sensitivity: 0.5,
		MinDistance: 0.15,
	})
	require.NoError(t, err)
	require.Len(t, wide.Samples, 1)

	// The suppression keeps the earlier onset
	assert.Equal(t, tight.Samples[0], wide.Samples[0])
}

func TestDetectOnsetsSilence(t *testing.T) {
	buf := silentBuffer(t, 44100, 2.0)
	detector := newTestOnsetDetector()

	result, err := detector.Detect(context.Background(), buf, DefaultOnsetParams())
	require.NoError(t, err)

	assert.Empty(t, result.Samples)
	assert.Empty(t, result.Times)
}

func TestDetectOnsetsDeterministic(t *testing.T) {
	buf := clickBuffer(t, 44100, 4.0, []float64{0.5, 1.5, 2.5})
	detector := newTestOnsetDetector()

	first, err := detector.Detect(context.Background(), buf, DefaultOnsetParams())
	require.NoError(t, err)
	second, err := detector.Detect(context.Background(), buf, DefaultOnsetParams())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetectOnsetsProgress(t *testing.T) {
	buf := clickBuffer(t, 44100, 4.0, []float64{1.0})
	detector := newTestOnsetDetector()

	recorder := &progressRecorder{}
	params := DefaultOnsetParams()
	params.OnProgress = recorder.record

	_, err := detector.Detect(context.Background(), buf, params)
	require.NoError(t, err)

	assertProgressWellFormed(t, recorder.values)
}

func TestDetectOnsetsProgressFinishesOnError(t *testing.T) {
	// Shorter than one frame: the detector fails, but progress still
	// terminates at 1.0 so indicators never hang
	buf, err := NewSampleBuffer(make([]float32, 1000), 44100)
	require.NoError(t, err)

	recorder := &progressRecorder{}
	params := DefaultOnsetParams()
	params.OnProgress = recorder.record

	_, err = newTestOnsetDetector().Detect(context.Background(), buf, params)
	require.Error(t, err)
	assertProgressWellFormed(t, recorder.values)
}

func TestDetectOnsetsCancellation(t *testing.T) {
	buf := clickBuffer(t, 44100, 4.0, []float64{1.0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOnsetDetector().Detect(ctx, buf, DefaultOnsetParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSensitivityMultiplier(t *testing.T) {
	// Higher sensitivity lowers the threshold multiplier
	assert.InDelta(t, 2.5, sensitivityMultiplier(0.0), 1e-9)
	assert.InDelta(t, 1.5, sensitivityMultiplier(0.5), 1e-9)
	assert.InDelta(t, 0.5, sensitivityMultiplier(1.0), 1e-9)

	// Out-of-range inputs clamp to [0, 1]
	assert.InDelta(t, 2.5, sensitivityMultiplier(-3.0), 1e-9)
	assert.InDelta(t, 0.5, sensitivityMultiplier(7.0), 1e-9)

	// The multiplier never reaches zero
	assert.GreaterOrEqual(t, sensitivityMultiplier(1.0), 0.1)
}
