package analysis

import (
	"context"
	"fmt"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/spectral"
	"github.com/gordo-v1su4/samplerista-engine/algorithms/stats"
	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// OnsetResult holds detected onsets as parallel sample-index and
// seconds arrays, strictly increasing, no two closer than the requested
// minimum distance
type OnsetResult struct {
	Samples []int     `json:"samples"`
	Times   []float64 `json:"times"`
}

// OnsetDetector finds transient locations via spectral flux with an
// adaptive median+MAD threshold
type OnsetDetector struct {
	cfg    Config
	cache  *windowing.Cache
	flux   *spectral.SpectralFlux
	logger logging.Logger
}

// NewOnsetDetector creates an onset detector sharing the engine's window
// cache
func NewOnsetDetector(cfg Config, cache *windowing.Cache) *OnsetDetector {
	return &OnsetDetector{
		cfg:   cfg,
		cache: cache,
		flux:  spectral.NewSpectralFlux(),
		logger: logging.WithFields(logging.Fields{
			"component": "onset_detector",
		}),
	}
}

// Detect runs onset detection over the whole buffer. The frame loop
// yields cooperatively every cfg.OnsetYieldInterval frames and reports
// fractional progress through params.OnProgress.
func (od *OnsetDetector) Detect(ctx context.Context, buf *SampleBuffer, params OnsetParams) (*OnsetResult, error) {
	progress := newProgressTracker(params.OnProgress)
	defer progress.Finish()

	flux, err := od.computeFlux(ctx, buf, progress)
	if err != nil {
		return nil, err
	}

	threshold := stats.AdaptiveThreshold(flux, sensitivityMultiplier(params.Sensitivity))

	minDistanceFrames := int(params.MinDistance * float64(buf.SampleRate()) / float64(od.cfg.HopSize))
	peakFrames := od.pickPeaks(flux, threshold, minDistanceFrames)

	result := &OnsetResult{
		Samples: make([]int, len(peakFrames)),
		Times:   make([]float64, len(peakFrames)),
	}
	for i, frameIdx := range peakFrames {
		sample := od.peakFrameToSample(frameIdx, buf)
		result.Samples[i] = sample
		result.Times[i] = buf.SampleToTime(sample)
	}

	od.logger.Debug("onset detection complete", logging.Fields{
		"onsets":    len(peakFrames),
		"threshold": fmt.Sprintf("%.4f", threshold),
		"frames":    len(flux),
	})

	return result, nil
}

// computeFlux iterates frames and produces the spectral flux series.
// flux[0] is 0 since frame 0 has no predecessor.
func (od *OnsetDetector) computeFlux(ctx context.Context, buf *SampleBuffer, progress *progressTracker) ([]float64, error) {
	it, err := NewFrameIterator(buf, od.cfg.FrameSize, od.cfg.HopSize, od.cache)
	if err != nil {
		return nil, err
	}

	total := it.FrameCount()
	flux := make([]float64, total)

	var prev []float64
	for frame, ok := it.Next(); ok; frame, ok = it.Next() {
		spectrum, err := frame.Spectrum()
		if err != nil {
			return nil, fmt.Errorf("spectrum for frame %d: %w", frame.Index(), err)
		}

		if prev != nil {
			flux[frame.Index()] = od.flux.Compute(prev, spectrum)
		}
		prev = spectrum

		if (frame.Index()+1)%od.cfg.OnsetYieldInterval == 0 {
			progress.Report(float64(frame.Index()+1) / float64(total))
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
		}
	}

	return flux, nil
}

// peakFrameToSample converts a flux peak frame to its onset timestamp.
// The flux peaks on the frame whose window is centered over the
// transient, so the window half-width is added to land the timestamp on
// the transient itself rather than the frame start.
func (od *OnsetDetector) peakFrameToSample(frameIdx int, buf *SampleBuffer) int {
	sample := frameIdx*od.cfg.HopSize + od.cfg.FrameSize/2
	if sample >= buf.Len() {
		sample = buf.Len() - 1
	}
	return sample
}

// pickPeaks accepts strict local maxima above the threshold, rejecting
// candidates within minDistanceFrames of the last accepted onset.
// Greedy left-to-right, no backtracking.
func (od *OnsetDetector) pickPeaks(flux []float64, threshold float64, minDistanceFrames int) []int {
	if len(flux) < 3 {
		return []int{}
	}

	peaks := []int{}
	lastPeakFrame := -minDistanceFrames - 1 // Allow first peak

	for i := 1; i < len(flux)-1; i++ {
		if flux[i] > threshold &&
			flux[i] > flux[i-1] &&
			flux[i] > flux[i+1] &&
			i-lastPeakFrame > minDistanceFrames {
			peaks = append(peaks, i)
			lastPeakFrame = i
		}
	}

	return peaks
}

// sensitivityMultiplier maps sensitivity in [0, 1] to the MAD multiplier
// of the adaptive threshold. Higher sensitivity lowers the threshold.
func sensitivityMultiplier(sensitivity float64) float64 {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 1 {
		sensitivity = 1
	}

	multiplier := 2.5 - 2.0*sensitivity
	if multiplier < 0.1 {
		multiplier = 0.1
	}
	return multiplier
}
