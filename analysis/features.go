package analysis

import (
	"github.com/gordo-v1su4/samplerista-engine/algorithms/chroma"
	"github.com/gordo-v1su4/samplerista-engine/algorithms/spectral"
	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// FeatureExtractor derives per-frame feature vectors. A feature failure
// on an individual frame is absorbed into a deterministic fallback
// vector and logged at debug level: one bad frame must never abort a
// multi-minute analysis job, at the cost of a degenerate feature for
// that frame.
type FeatureExtractor struct {
	chroma *chroma.Chroma
	mfcc   *spectral.MFCC
	logger logging.Logger
}

// NewFeatureExtractor creates a feature extractor for the given sample
// rate. One extractor serves one analysis call.
func NewFeatureExtractor(sampleRate, mfccCoefficients int) *FeatureExtractor {
	return &FeatureExtractor{
		chroma: chroma.New(sampleRate),
		mfcc:   spectral.NewMFCC(sampleRate, mfccCoefficients),
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}
}

// Chroma returns the 12-bin pitch-class vector for a frame, or the
// all-zero fallback vector if the underlying primitive fails
func (fe *FeatureExtractor) Chroma(frame *Frame) []float64 {
	spectrum, err := frame.Spectrum()
	if err != nil {
		fe.logger.Debug("chroma fallback", logging.Fields{"frame": frame.Index(), "error": err.Error()})
		return fallbackChroma()
	}

	vector, err := fe.chroma.Compute(spectrum)
	if err != nil {
		fe.logger.Debug("chroma fallback", logging.Fields{"frame": frame.Index(), "error": err.Error()})
		return fallbackChroma()
	}

	return vector
}

// MFCC returns the cepstral coefficient vector for a frame. On failure
// it falls back to a single RMS-derived coefficient padded with zeros.
func (fe *FeatureExtractor) MFCC(frame *Frame) []float64 {
	spectrum, err := frame.Spectrum()
	if err != nil {
		fe.logger.Debug("mfcc fallback", logging.Fields{"frame": frame.Index(), "error": err.Error()})
		return fallbackMFCC(fe.mfcc.NumCoefficients(), frame.RMS())
	}

	coeffs, err := fe.mfcc.Compute(spectrum)
	if err != nil {
		fe.logger.Debug("mfcc fallback", logging.Fields{"frame": frame.Index(), "error": err.Error()})
		return fallbackMFCC(fe.mfcc.NumCoefficients(), frame.RMS())
	}

	return coeffs
}

// fallbackChroma is the deterministic substitute for a failed chroma
// computation
func fallbackChroma() []float64 {
	return make([]float64, chroma.NumBins)
}

// fallbackMFCC is the deterministic substitute for a failed MFCC
// computation: the frame's RMS as the first coefficient, zeros after
func fallbackMFCC(numCoefficients int, rms float64) []float64 {
	coeffs := make([]float64, numCoefficients)
	if numCoefficients > 0 {
		coeffs[0] = rms
	}
	return coeffs
}
