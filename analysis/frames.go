package analysis

import (
	"fmt"
	"math"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/spectral"
	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
)

// FrameIterator slides a fixed-size window over a sample buffer at a
// fixed hop, yielding frames in order. Iterators are single-use: a fresh
// one is created per analysis call. Trailing samples that do not fill a
// whole frame are dropped, so the frame count is
// floor((N - frameSize) / hopSize) + 1.
type FrameIterator struct {
	buf       *SampleBuffer
	frameSize int
	hopSize   int
	cache     *windowing.Cache
	magnitude *spectral.Magnitude

	count int
	next  int
}

// NewFrameIterator creates an iterator over buf. Fails if the buffer is
// shorter than one frame.
func NewFrameIterator(buf *SampleBuffer, frameSize, hopSize int, cache *windowing.Cache) (*FrameIterator, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}
	if buf.Len() < frameSize {
		return nil, fmt.Errorf("buffer too short for analysis: %d samples, frame size %d", buf.Len(), frameSize)
	}

	return &FrameIterator{
		buf:       buf,
		frameSize: frameSize,
		hopSize:   hopSize,
		cache:     cache,
		magnitude: spectral.NewMagnitude(),
		count:     (buf.Len()-frameSize)/hopSize + 1,
	}, nil
}

// FrameCount returns the total number of frames the iterator will yield
func (it *FrameIterator) FrameCount() int {
	return it.count
}

// Next yields the next frame, or false when the iterator is exhausted
func (it *FrameIterator) Next() (*Frame, bool) {
	if it.next >= it.count {
		return nil, false
	}

	index := it.next
	it.next++

	start := index * it.hopSize
	raw, _ := it.buf.ChannelData(0)

	// Convert once per frame; all downstream math is float64
	samples := make([]float64, it.frameSize)
	for i := 0; i < it.frameSize; i++ {
		samples[i] = float64(raw[start+i])
	}

	return &Frame{
		samples:   samples,
		index:     index,
		start:     start,
		cache:     it.cache,
		magnitude: it.magnitude,
	}, true
}

// Frame is one analysis window worth of samples
type Frame struct {
	samples   []float64
	index     int
	start     int
	cache     *windowing.Cache
	magnitude *spectral.Magnitude

	windowed []float64
	spectrum []float64
}

// Index returns the frame's position in the iteration order
func (f *Frame) Index() int {
	return f.index
}

// StartSample returns the frame's offset into the buffer in samples
func (f *Frame) StartSample() int {
	return f.start
}

// Windowed returns the frame multiplied by the cached Hann window of
// matching length. Computed once and memoized.
func (f *Frame) Windowed() []float64 {
	if f.windowed == nil {
		coeffs := f.cache.Get(len(f.samples)).Coefficients()
		f.windowed = make([]float64, len(f.samples))
		for i, s := range f.samples {
			f.windowed[i] = s * coeffs[i]
		}
	}
	return f.windowed
}

// Spectrum returns the magnitude spectrum of the windowed frame, with
// frameSize/2 bins. Computed once and memoized.
func (f *Frame) Spectrum() ([]float64, error) {
	if f.spectrum == nil {
		spectrum, err := f.magnitude.Compute(f.Windowed())
		if err != nil {
			return nil, err
		}
		f.spectrum = spectrum
	}
	return f.spectrum, nil
}

// RMS returns sqrt(mean(sample^2)) over the raw, unwindowed frame
func (f *Frame) RMS() float64 {
	sumSquares := 0.0
	for _, s := range f.samples {
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(len(f.samples)))
}
