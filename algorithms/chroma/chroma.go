// Package chroma folds magnitude spectra into 12-bin pitch-class energy
// vectors (C, C#, D, D#, E, F, F#, G, G#, A, A#, B), the octave-invariant
// harmonic summary used for self-similarity analysis.
package chroma

import (
	"fmt"
	"math"
)

// NumBins is the number of pitch classes in a chroma vector
const NumBins = 12

// Chroma computes pitch-class energy vectors from magnitude spectra
type Chroma struct {
	sampleRate int
	tuningFreq float64 // A4 frequency (default 440 Hz)
	minFreq    float64 // Lowest frequency folded into the vector
	maxFreq    float64 // Highest frequency folded into the vector

	// Bin-to-pitch-class mapping, keyed by spectrum length
	mappingBins int
	mapping     []int
}

// New creates a chroma calculator with standard A4=440Hz tuning
func New(sampleRate int) *Chroma {
	return &Chroma{
		sampleRate: sampleRate,
		tuningFreq: 440.0,
		minFreq:    80.0,   // Approximate E2
		maxFreq:    8000.0, // High enough for harmonics
	}
}

// Compute folds a magnitude spectrum of fftSize/2 bins into a 12-element
// pitch-class energy vector, normalized to unit sum
func (c *Chroma) Compute(magnitudeSpectrum []float64) ([]float64, error) {
	if len(magnitudeSpectrum) == 0 {
		return nil, fmt.Errorf("empty magnitude spectrum")
	}

	if c.mapping == nil || c.mappingBins != len(magnitudeSpectrum) {
		c.buildMapping(len(magnitudeSpectrum))
	}

	vector := make([]float64, NumBins)
	for bin, mag := range magnitudeSpectrum {
		pc := c.mapping[bin]
		if pc < 0 {
			continue
		}
		// Magnitude squared for energy
		vector[pc] += mag * mag
	}

	normalize(vector)
	return vector, nil
}

// buildMapping maps FFT bins to pitch classes for a spectrum of the given
// length. fftSize = 2 * bins, so resolution = sampleRate / (2 * bins).
func (c *Chroma) buildMapping(bins int) {
	resolution := float64(c.sampleRate) / float64(2*bins)

	c.mapping = make([]int, bins)
	c.mappingBins = bins

	for bin := 0; bin < bins; bin++ {
		frequency := float64(bin) * resolution

		if frequency < c.minFreq || frequency > c.maxFreq {
			c.mapping[bin] = -1
			continue
		}

		// MIDI note number: 69 + 12 * log2(f/tuning), A4 = 69
		midiNote := 69.0 + 12.0*math.Log2(frequency/c.tuningFreq)
		pc := int(math.Round(midiNote)) % NumBins
		if pc < 0 {
			pc += NumBins
		}
		c.mapping[bin] = pc
	}
}

// normalize scales a chroma vector to unit sum
func normalize(vector []float64) {
	total := 0.0
	for _, energy := range vector {
		total += energy
	}

	if total > 1e-10 {
		for i := range vector {
			vector[i] /= total
		}
	}
}

// Labels returns the pitch-class labels in bin order
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}
