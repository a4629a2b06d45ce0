package spectral

import (
	"fmt"
	"math/cmplx"
)

// Magnitude computes magnitude spectra of individual analysis frames
type Magnitude struct {
	fft *FFT
}

// NewMagnitude creates a new magnitude spectrum calculator
func NewMagnitude() *Magnitude {
	return &Magnitude{
		fft: NewFFT(),
	}
}

// Compute returns the magnitude spectrum of a (typically windowed) frame.
// Only the first len(frame)/2 bins are kept; the upper half of the FFT
// mirrors the lower half for real input.
func (m *Magnitude) Compute(frame []float64) ([]float64, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	spectrum := m.fft.Compute(frame)

	bins := len(frame) / 2
	if bins == 0 {
		bins = 1
	}

	magnitude := make([]float64, bins)
	for i := 0; i < bins; i++ {
		magnitude[i] = cmplx.Abs(spectrum[i])
	}

	return magnitude, nil
}
