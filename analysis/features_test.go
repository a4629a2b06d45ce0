package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
)

func TestFeatureExtractorChroma(t *testing.T) {
	// A 440 Hz tone concentrates chroma energy in pitch class A
	buf := sineBuffer(t, 44100, 0.5, 440.0, 0.8)

	it, err := NewFrameIterator(buf, 2048, 512, windowing.NewCache())
	require.NoError(t, err)
	frame, ok := it.Next()
	require.True(t, ok)

	extractor := NewFeatureExtractor(44100, 13)
	vector := extractor.Chroma(frame)
	require.Len(t, vector, 12)

	// Unit-sum normalization
	sum := 0.0
	argmax := 0
	for pc, energy := range vector {
		sum += energy
		if energy > vector[argmax] {
			argmax = pc
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 9, argmax) // A is pitch class 9
}

func TestFeatureExtractorMFCC(t *testing.T) {
	buf := sineBuffer(t, 44100, 0.5, 440.0, 0.8)

	it, err := NewFrameIterator(buf, 2048, 512, windowing.NewCache())
	require.NoError(t, err)
	frame, ok := it.Next()
	require.True(t, ok)

	extractor := NewFeatureExtractor(44100, 13)
	coeffs := extractor.MFCC(frame)
	assert.Len(t, coeffs, 13)
}

func TestFeatureFallbacks(t *testing.T) {
	chroma := fallbackChroma()
	require.Len(t, chroma, 12)
	for _, v := range chroma {
		assert.Equal(t, 0.0, v)
	}

	mfcc := fallbackMFCC(13, 0.25)
	require.Len(t, mfcc, 13)
	assert.Equal(t, 0.25, mfcc[0])
	for _, v := range mfcc[1:] {
		assert.Equal(t, 0.0, v)
	}
}
