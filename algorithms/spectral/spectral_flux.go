package spectral

// SpectralFlux computes half-wave rectified spectral flux, the
// frame-to-frame positive-only change in spectral magnitude used as an
// onset-strength signal.
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// Compute calculates flux between two consecutive magnitude spectra:
// sum over bins of max(0, cur[b] - prev[b])
func (sf *SpectralFlux) Compute(prev, cur []float64) float64 {
	n := min(len(prev), len(cur))

	sum := 0.0
	for b := 0; b < n; b++ {
		diff := cur[b] - prev[b]
		if diff > 0 { // Only energy increases
			sum += diff
		}
	}

	return sum
}

// ComputeSeries calculates the flux series for a sequence of magnitude
// spectra. The first frame has no predecessor and gets flux 0, so the
// output has the same length as the input.
func (sf *SpectralFlux) ComputeSeries(spectrogram [][]float64) []float64 {
	if len(spectrogram) == 0 {
		return []float64{}
	}

	flux := make([]float64, len(spectrogram))
	for t := 1; t < len(spectrogram); t++ {
		flux[t] = sf.Compute(spectrogram[t-1], spectrogram[t])
	}

	return flux
}
