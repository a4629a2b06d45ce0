package analysis

import (
	"context"
	"strconv"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/stats"
	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// SectionBoundary is one labeled song section. Boundaries are contiguous
// and non-overlapping, covering exactly [0, duration): the first starts
// at sample 0 and the last ends at the buffer end.
type SectionBoundary struct {
	StartSample int     `json:"start_sample"`
	EndSample   int     `json:"end_sample"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
}

// SongStructureResult holds the detected sections plus the tempo
// estimate attached to the analysis
type SongStructureResult struct {
	Boundaries []SectionBoundary `json:"boundaries"`
	BPM        int               `json:"bpm"`
}

// Progress weights per stage of structure detection. The feature pass
// dominates wall-clock time; the remaining stages split the rest.
const (
	progressFeatures = 0.6
	progressMatrix   = 0.8
	progressNovelty  = 0.9
	progressLabels   = 0.95
)

// StructureSegmenter detects large-scale song structure via chroma
// self-similarity and checkerboard-kernel novelty
type StructureSegmenter struct {
	cfg    Config
	cache  *windowing.Cache
	tempo  *TempoEstimator
	logger logging.Logger
}

// NewStructureSegmenter creates a structure segmenter sharing the
// engine's window cache and tempo estimator
func NewStructureSegmenter(cfg Config, cache *windowing.Cache, tempo *TempoEstimator) *StructureSegmenter {
	return &StructureSegmenter{
		cfg:   cfg,
		cache: cache,
		tempo: tempo,
		logger: logging.WithFields(logging.Fields{
			"component": "structure_segmenter",
		}),
	}
}

// Detect runs the full structure pipeline: feature extraction,
// self-similarity matrix, novelty-based boundary detection, budget
// merging, labeling, and tempo attachment. Errors propagate to the
// caller, but progress is still driven to 1.0 so progress indicators
// never hang.
func (ss *StructureSegmenter) Detect(ctx context.Context, buf *SampleBuffer, params StructureParams) (*SongStructureResult, error) {
	if params.MaxSections <= 0 {
		params.MaxSections = DefaultStructureParams().MaxSections
	}
	if params.MinSectionDuration <= 0 {
		params.MinSectionDuration = DefaultStructureParams().MinSectionDuration
	}

	progress := newProgressTracker(params.OnProgress)
	defer progress.Finish()

	features, err := ss.extractFeatures(ctx, buf, progress)
	if err != nil {
		return nil, err
	}

	matrix, err := ss.similarityMatrix(ctx, features.chroma, progress)
	if err != nil {
		return nil, err
	}

	numFrames := len(features.chroma)
	minSectionFrames := int(params.MinSectionDuration * float64(buf.SampleRate()) / float64(ss.cfg.HopSize))

	boundaryFrames, err := ss.detectBoundaries(ctx, matrix, buf, minSectionFrames, progress)
	if err != nil {
		return nil, err
	}

	boundaryFrames = mergeToBudget(boundaryFrames, params.MaxSections)

	boundaries := ss.labelSections(boundaryFrames, features.rms, buf, numFrames)
	progress.Report(progressLabels)

	bpm := ss.tempo.Estimate(buf)

	ss.logger.Debug("structure detection complete", logging.Fields{
		"sections": len(boundaries),
		"frames":   numFrames,
		"bpm":      bpm.BPM,
	})

	return &SongStructureResult{
		Boundaries: boundaries,
		BPM:        bpm.BPM,
	}, nil
}

// featureSequences holds the per-frame feature sequences of one
// analysis call, indexed by frame number. Segmentation is chroma-driven
// and labeling is energy-driven; MFCC rides along as the timbral view
// of the same pass.
type featureSequences struct {
	chroma [][]float64
	mfcc   [][]float64
	rms    []float64
}

// extractFeatures accumulates the per-frame chroma, MFCC, and RMS
// sequences in a single pass. Yields every cfg.FeatureYieldInterval
// frames; progress runs 0 to progressFeatures.
func (ss *StructureSegmenter) extractFeatures(ctx context.Context, buf *SampleBuffer, progress *progressTracker) (*featureSequences, error) {
	it, err := NewFrameIterator(buf, ss.cfg.FrameSize, ss.cfg.HopSize, ss.cache)
	if err != nil {
		return nil, err
	}

	extractor := NewFeatureExtractor(buf.SampleRate(), ss.cfg.MFCCCoefficients)

	total := it.FrameCount()
	features := &featureSequences{
		chroma: make([][]float64, 0, total),
		mfcc:   make([][]float64, 0, total),
		rms:    make([]float64, 0, total),
	}

	for frame, ok := it.Next(); ok; frame, ok = it.Next() {
		features.chroma = append(features.chroma, extractor.Chroma(frame))
		features.mfcc = append(features.mfcc, extractor.MFCC(frame))
		features.rms = append(features.rms, frame.RMS())

		if (frame.Index()+1)%ss.cfg.FeatureYieldInterval == 0 {
			progress.Report(progressFeatures * float64(frame.Index()+1) / float64(total))
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
		}
	}

	return features, nil
}

// similarityMatrix builds the chroma cosine self-similarity matrix.
// Symmetric with unit diagonal; the dominant memory cost of the whole
// pipeline at O(frames^2). Progress runs to progressMatrix.
func (ss *StructureSegmenter) similarityMatrix(ctx context.Context, chromaSeq [][]float64, progress *progressTracker) ([][]float64, error) {
	n := len(chromaSeq)

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		matrix[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			sim := stats.CosineSimilarity(chromaSeq[i], chromaSeq[j])
			matrix[i][j] = sim
			matrix[j][i] = sim
		}

		if (i+1)%ss.cfg.FeatureYieldInterval == 0 {
			progress.Report(progressFeatures + (progressMatrix-progressFeatures)*float64(i+1)/float64(n))
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
		}
	}

	return matrix, nil
}

// detectBoundaries slides a checkerboard kernel along the matrix
// diagonal and thresholds the resulting novelty curve. Boundary 0 and
// the final frame are always forced. Progress runs to progressNovelty.
func (ss *StructureSegmenter) detectBoundaries(ctx context.Context, matrix [][]float64, buf *SampleBuffer, minSectionFrames int, progress *progressTracker) ([]int, error) {
	n := len(matrix)

	kernelSize := int(ss.cfg.KernelSeconds * float64(buf.SampleRate()) / float64(ss.cfg.HopSize))
	if kernelSize < 1 {
		kernelSize = 1
	}

	novelty := make([]float64, n)
	for i := 0; i < n; i++ {
		novelty[i] = checkerboardNovelty(matrix, i, kernelSize)

		if (i+1)%ss.cfg.FeatureYieldInterval == 0 {
			progress.Report(progressMatrix + (progressNovelty-progressMatrix)*float64(i+1)/float64(n))
			if err := checkpoint(ctx); err != nil {
				return nil, err
			}
		}
	}

	threshold := stats.AdaptiveThreshold(novelty, ss.cfg.NoveltyMultiplier)

	// Forced start boundary; candidates must clear minSectionFrames from
	// the previous boundary and from the buffer end
	boundaries := []int{0}
	last := 0

	for i := 1; i < n-1; i++ {
		if novelty[i] > threshold &&
			novelty[i] > novelty[i-1] &&
			novelty[i] > novelty[i+1] &&
			i-last >= minSectionFrames &&
			n-1-i >= minSectionFrames {
			boundaries = append(boundaries, i)
			last = i
		}
	}

	// Forced end boundary: n is the sentinel for the buffer end
	boundaries = append(boundaries, n)

	return boundaries, nil
}

// checkerboardNovelty evaluates the checkerboard kernel centered at
// diagonal position i: same-sign quadrants add similarity, cross
// quadrants subtract it, so the sum peaks at transitions between
// self-similar blocks
func checkerboardNovelty(matrix [][]float64, i, kernelSize int) float64 {
	n := len(matrix)
	novelty := 0.0

	for k := -kernelSize; k <= kernelSize; k++ {
		for l := -kernelSize; l <= kernelSize; l++ {
			if k == 0 || l == 0 {
				continue
			}

			row := i + k
			col := i + l
			if row < 0 || row >= n || col < 0 || col >= n {
				continue
			}

			if k*l > 0 {
				novelty += matrix[row][col]
			} else {
				novelty -= matrix[row][col]
			}
		}
	}

	return novelty
}

// mergeToBudget greedily removes interior boundaries until at most
// maxSections sections remain: find the adjacent pair with the smallest
// gap (ties to the lowest index) and drop its interior boundary. The
// forced first and last boundaries are never removed themselves, which
// can leave the very first or last section shorter than the minimum
// duration in pathological inputs; that asymmetry is intended behavior.
func mergeToBudget(boundaries []int, maxSections int) []int {
	for len(boundaries) > maxSections+1 {
		bestIdx := 0
		bestGap := -1

		for i := 0; i < len(boundaries)-1; i++ {
			gap := boundaries[i+1] - boundaries[i]
			if bestGap < 0 || gap < bestGap {
				bestGap = gap
				bestIdx = i
			}
		}

		// Drop the interior boundary of the winning pair
		drop := bestIdx + 1
		if drop == len(boundaries)-1 {
			drop = bestIdx
		}

		boundaries = append(boundaries[:drop], boundaries[drop+1:]...)
	}

	return boundaries
}

// labelSections converts boundary frames into labeled sections.
// Classification runs in fixed decision order on mean section RMS
// normalized by the loudest section; the normalized energy doubles as
// the confidence score.
func (ss *StructureSegmenter) labelSections(boundaryFrames []int, rmsSeq []float64, buf *SampleBuffer, numFrames int) []SectionBoundary {
	numSections := len(boundaryFrames) - 1
	duration := buf.Duration()

	// Mean RMS per section, then normalize by the maximum
	energies := make([]float64, numSections)
	maxEnergy := 0.0
	for s := 0; s < numSections; s++ {
		startFrame := boundaryFrames[s]
		endFrame := min(boundaryFrames[s+1], numFrames)
		if endFrame > startFrame {
			energies[s] = stats.Mean(rmsSeq[startFrame:endFrame])
		}
		if energies[s] > maxEnergy {
			maxEnergy = energies[s]
		}
	}
	if maxEnergy > 0 {
		for s := range energies {
			energies[s] /= maxEnergy
		}
	}

	sections := make([]SectionBoundary, numSections)
	for s := 0; s < numSections; s++ {
		startSample := ss.frameToSample(boundaryFrames[s], numFrames, buf)
		endSample := ss.frameToSample(boundaryFrames[s+1], numFrames, buf)
		startTime := buf.SampleToTime(startSample)
		endTime := buf.SampleToTime(endSample)

		label := classifySection(s, numSections, startTime, endTime, duration, energies[s])

		sections[s] = SectionBoundary{
			StartSample: startSample,
			EndSample:   endSample,
			StartTime:   startTime,
			EndTime:     endTime,
			Label:       label + " " + strconv.Itoa(s+1),
			Confidence:  energies[s],
		}
	}

	return sections
}

// frameToSample maps a boundary frame index to a sample offset. The
// sentinel index numFrames maps to the buffer end so the last section
// always covers the trailing partial frame.
func (ss *StructureSegmenter) frameToSample(frame, numFrames int, buf *SampleBuffer) int {
	if frame >= numFrames {
		return buf.Len()
	}
	return frame * ss.cfg.HopSize
}

// classifySection applies the fixed decision order: positional rules
// first (Intro, Outro), then energy bands
func classifySection(index, numSections int, startTime, endTime, duration, energy float64) string {
	switch {
	case index == 0 && endTime < 0.1*duration:
		return "Intro"
	case index == numSections-1 && startTime > 0.8*duration:
		return "Outro"
	case energy > 0.7:
		return "Chorus"
	case energy > 0.4:
		return "Verse"
	case energy < 0.3:
		center := (startTime + endTime) / 2.0
		if center > duration/2.0 {
			return "Bridge"
		}
		return "Break"
	default:
		return "Verse"
	}
}
