package analysis

import (
	"fmt"
	"math"

	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// BPMResult holds a tempo estimate. BPM is rounded to the nearest
// integer; Confidence is an opaque advisory score whose scale comes from
// the normalized autocorrelation peak.
type BPMResult struct {
	BPM        int     `json:"bpm"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
}

// Tempo estimation defaults. Tempo is advisory: any internal failure
// falls back to 120 BPM with zero confidence instead of erroring, so a
// failed estimate never aborts a calling workflow.
const (
	defaultBPM = 120

	tempoEnvelopeSeconds = 0.1 // RMS envelope frame length
	minTempoBPM          = 60.0
	maxTempoBPM          = 180.0
)

// TempoEstimator estimates tempo from the autocorrelation of the RMS
// energy envelope
type TempoEstimator struct {
	logger logging.Logger
}

// NewTempoEstimator creates a tempo estimator
func NewTempoEstimator() *TempoEstimator {
	return &TempoEstimator{
		logger: logging.WithFields(logging.Fields{
			"component": "tempo_estimator",
		}),
	}
}

// Estimate returns a BPM estimate for the buffer. It never fails; see
// the fallback constants above.
func (te *TempoEstimator) Estimate(buf *SampleBuffer) *BPMResult {
	bpm, confidence, err := te.estimate(buf)
	if err != nil {
		te.logger.Debug("tempo fallback", logging.Fields{"error": err.Error()})
		return &BPMResult{
			BPM:        defaultBPM,
			Confidence: 0,
			Category:   classifyTempo(defaultBPM),
		}
	}

	return &BPMResult{
		BPM:        bpm,
		Confidence: confidence,
		Category:   classifyTempo(float64(bpm)),
	}
}

func (te *TempoEstimator) estimate(buf *SampleBuffer) (int, float64, error) {
	envelope, hopSize, err := te.energyEnvelope(buf)
	if err != nil {
		return 0, 0, err
	}
	if len(envelope) < 10 {
		return 0, 0, fmt.Errorf("envelope too short for autocorrelation: %d frames", len(envelope))
	}

	autocorr := autocorrelate(envelope, len(envelope)/2)

	timePerFrame := float64(hopSize) / float64(buf.SampleRate())
	bestLag, peak := findTempoLag(autocorr, timePerFrame)
	if bestLag == 0 {
		return 0, 0, fmt.Errorf("no autocorrelation peak in tempo range")
	}

	period := float64(bestLag) * timePerFrame
	bpm := int(math.Round(60.0 / period))

	return bpm, peak, nil
}

// energyEnvelope computes the RMS envelope with 100ms frames at 25%
// overlap, the resolution beat periodicity shows up at
func (te *TempoEstimator) energyEnvelope(buf *SampleBuffer) ([]float64, int, error) {
	frameSize := int(tempoEnvelopeSeconds * float64(buf.SampleRate()))
	hopSize := frameSize / 4
	if hopSize <= 0 {
		hopSize = 1
	}

	if buf.Len() < frameSize {
		return nil, 0, fmt.Errorf("buffer too short for tempo envelope: %d samples", buf.Len())
	}

	raw, err := buf.ChannelData(0)
	if err != nil {
		return nil, 0, err
	}

	numFrames := (len(raw)-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)

	for i := 0; i < numFrames; i++ {
		start := i * hopSize
		sumSquares := 0.0
		for j := start; j < start+frameSize; j++ {
			s := float64(raw[j])
			sumSquares += s * s
		}
		envelope[i] = math.Sqrt(sumSquares / float64(frameSize))
	}

	return envelope, hopSize, nil
}

// autocorrelate computes the normalized autocorrelation of a signal up
// to maxLag
func autocorrelate(signal []float64, maxLag int) []float64 {
	if maxLag > len(signal) {
		maxLag = len(signal)
	}

	autocorr := make([]float64, maxLag)
	for lag := 0; lag < maxLag; lag++ {
		sum := 0.0
		for i := 0; i < len(signal)-lag; i++ {
			sum += signal[i] * signal[i+lag]
		}
		autocorr[lag] = sum / float64(len(signal)-lag)
	}

	if len(autocorr) > 0 && autocorr[0] > 0 {
		for i := range autocorr {
			autocorr[i] /= autocorr[0]
		}
	}

	return autocorr
}

// findTempoLag finds the highest local maximum in the lag range
// corresponding to 60-180 BPM. Returns lag 0 when no peak exists.
func findTempoLag(autocorr []float64, timePerFrame float64) (int, float64) {
	minLag := int(60.0 / maxTempoBPM / timePerFrame)
	maxLag := int(60.0 / minTempoBPM / timePerFrame)

	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(autocorr)-1 {
		maxLag = len(autocorr) - 2
	}

	bestLag := 0
	bestVal := 0.0

	for lag := minLag; lag <= maxLag; lag++ {
		if autocorr[lag] > autocorr[lag-1] &&
			autocorr[lag] > autocorr[lag+1] &&
			autocorr[lag] > bestVal {
			bestVal = autocorr[lag]
			bestLag = lag
		}
	}

	return bestLag, bestVal
}

// classifyTempo buckets a tempo into broad categories
func classifyTempo(bpm float64) string {
	switch {
	case bpm < 60:
		return "very_slow"
	case bpm < 90:
		return "slow"
	case bpm < 120:
		return "moderate"
	case bpm < 150:
		return "fast"
	default:
		return "very_fast"
	}
}
