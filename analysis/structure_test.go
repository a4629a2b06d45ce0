package analysis

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
)

func newTestSegmenter() *StructureSegmenter {
	return NewStructureSegmenter(DefaultConfig(), windowing.NewCache(), NewTempoEstimator())
}

var sectionLabels = []string{"Intro", "Outro", "Chorus", "Verse", "Bridge", "Break"}

// assertSectionsWellFormed checks the structural contract: contiguous
// non-overlapping sections covering exactly the whole buffer, known
// labels, confidences in [0, 1]
func assertSectionsWellFormed(t *testing.T, buf *SampleBuffer, sections []SectionBoundary) {
	t.Helper()

	require.NotEmpty(t, sections)
	assert.Equal(t, 0, sections[0].StartSample)
	assert.Equal(t, buf.Len(), sections[len(sections)-1].EndSample)

	for i, s := range sections {
		assert.Greater(t, s.EndSample, s.StartSample)
		if i > 0 {
			assert.Equal(t, sections[i-1].EndSample, s.StartSample)
		}

		assert.InDelta(t, buf.SampleToTime(s.StartSample), s.StartTime, 1e-9)
		assert.InDelta(t, buf.SampleToTime(s.EndSample), s.EndTime, 1e-9)

		prefix, _, found := strings.Cut(s.Label, " ")
		require.True(t, found, "label %q has no index suffix", s.Label)
		assert.Contains(t, sectionLabels, prefix)

		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestDetectStructureSilence(t *testing.T) {
	// A flat self-similarity landscape yields no novelty peaks: one
	// low-energy section spanning the whole buffer
	buf := silentBuffer(t, 22050, 10.0)

	result, err := newTestSegmenter().Detect(context.Background(), buf, DefaultStructureParams())
	require.NoError(t, err)

	assertSectionsWellFormed(t, buf, result.Boundaries)
	require.Len(t, result.Boundaries, 1)
	assert.Equal(t, "Break 1", result.Boundaries[0].Label)
	assert.Equal(t, 0.0, result.Boundaries[0].Confidence)

	// Silence has no tempo; the advisory fallback rides along
	assert.Equal(t, 120, result.BPM)
}

// twoTextureBuffer builds 30 seconds with a hard harmonic and energy
// change at the midpoint: a quiet A tone, then a louder E+G# dyad, both
// with a little noise
func twoTextureBuffer(t *testing.T) *SampleBuffer {
	t.Helper()

	const sampleRate = 22050
	rng := rand.New(rand.NewSource(42))

	n := 30 * sampleRate
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		ts := float64(i) / float64(sampleRate)
		noise := 0.05 * (rng.Float64()*2 - 1)

		var tone float64
		if i < n/2 {
			tone = 0.3 * math.Sin(2*math.Pi*220.0*ts)
		} else {
			tone = 0.4*math.Sin(2*math.Pi*330.0*ts) + 0.4*math.Sin(2*math.Pi*415.3*ts)
		}
		samples[i] = float32(tone + noise)
	}

	buf, err := NewSampleBuffer(samples, sampleRate)
	require.NoError(t, err)
	return buf
}

func TestDetectStructureTwoTextures(t *testing.T) {
	buf := twoTextureBuffer(t)

	params := StructureParams{MaxSections: 8, MinSectionDuration: 5.0}
	result, err := newTestSegmenter().Detect(context.Background(), buf, params)
	require.NoError(t, err)

	sections := result.Boundaries
	assertSectionsWellFormed(t, buf, sections)

	// The texture change produces at least one interior boundary, and
	// merging keeps the count within budget
	assert.GreaterOrEqual(t, len(sections), 2)
	assert.LessOrEqual(t, len(sections), params.MaxSections)

	// Every section respects the minimum duration, up to the frame
	// quantization of the boundary grid
	for _, s := range sections {
		assert.GreaterOrEqual(t, s.EndTime-s.StartTime, 4.9)
	}
}

func TestDetectStructureDeterministic(t *testing.T) {
	buf := twoTextureBuffer(t)
	segmenter := newTestSegmenter()
	params := StructureParams{MaxSections: 8, MinSectionDuration: 5.0}

	first, err := segmenter.Detect(context.Background(), buf, params)
	require.NoError(t, err)
	second, err := segmenter.Detect(context.Background(), buf, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetectStructureProgress(t *testing.T) {
	buf := silentBuffer(t, 22050, 10.0)

	recorder := &progressRecorder{}
	params := DefaultStructureParams()
	params.OnProgress = recorder.record

	_, err := newTestSegmenter().Detect(context.Background(), buf, params)
	require.NoError(t, err)
	assertProgressWellFormed(t, recorder.values)
}

func TestDetectStructureProgressFinishesOnError(t *testing.T) {
	buf, err := NewSampleBuffer(make([]float32, 1000), 22050)
	require.NoError(t, err)

	recorder := &progressRecorder{}
	params := DefaultStructureParams()
	params.OnProgress = recorder.record

	_, err = newTestSegmenter().Detect(context.Background(), buf, params)
	require.Error(t, err)
	assertProgressWellFormed(t, recorder.values)
}

func TestDetectStructureCancellation(t *testing.T) {
	buf := silentBuffer(t, 22050, 10.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSegmenter().Detect(ctx, buf, DefaultStructureParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeToBudget(t *testing.T) {
	// Smallest adjacent gap collapses first, dropping its interior
	// boundary
	merged := mergeToBudget([]int{0, 10, 20, 100}, 2)
	assert.Equal(t, []int{0, 20, 100}, merged)

	merged = mergeToBudget([]int{0, 20, 100}, 1)
	assert.Equal(t, []int{0, 100}, merged)

	// The forced final boundary survives even when the last gap is the
	// smallest; its interior neighbor goes instead
	merged = mergeToBudget([]int{0, 100, 110}, 1)
	assert.Equal(t, []int{0, 110}, merged)

	// Already within budget: untouched
	merged = mergeToBudget([]int{0, 50, 100}, 8)
	assert.Equal(t, []int{0, 50, 100}, merged)
}

func TestClassifySection(t *testing.T) {
	cases := []struct {
		name        string
		index       int
		numSections int
		start, end  float64
		energy      float64
		want        string
	}{
		{"intro", 0, 4, 0, 5, 0.9, "Intro"},
		{"outro", 3, 4, 90, 100, 0.9, "Outro"},
		{"chorus", 1, 4, 20, 50, 0.8, "Chorus"},
		{"verse", 1, 4, 20, 50, 0.5, "Verse"},
		{"bridge late", 1, 4, 60, 80, 0.1, "Bridge"},
		{"break early", 1, 4, 15, 40, 0.1, "Break"},
		{"mid energy defaults to verse", 1, 4, 20, 50, 0.35, "Verse"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifySection(tc.index, tc.numSections, tc.start, tc.end, 100.0, tc.energy)
			assert.Equal(t, tc.want, got)
		})
	}
}
