// Package analysis implements the offline audio analysis engine behind
// the sampler: onset detection, tempo estimation, and song structure
// segmentation over decoded mono PCM.
package analysis

// Config holds the engine-wide analysis parameters
type Config struct {
	// Spectral analysis
	FrameSize int `json:"frame_size" yaml:"frame_size"` // Analysis window length in samples
	HopSize   int `json:"hop_size" yaml:"hop_size"`     // Stride between frames in samples

	// Feature extraction
	MFCCCoefficients int `json:"mfcc_coefficients" yaml:"mfcc_coefficients"`

	// Cooperative yield cadence, in frames. Measured in frames rather
	// than wall-clock time so behavior is deterministic for a given
	// buffer size regardless of host speed.
	OnsetYieldInterval   int `json:"onset_yield_interval" yaml:"onset_yield_interval"`
	FeatureYieldInterval int `json:"feature_yield_interval" yaml:"feature_yield_interval"`

	// Structure segmentation
	KernelSeconds     float64 `json:"kernel_seconds" yaml:"kernel_seconds"`         // Checkerboard kernel half-width
	NoveltyMultiplier float64 `json:"novelty_multiplier" yaml:"novelty_multiplier"` // MAD multiplier for novelty threshold

	// Slice building
	MaxSlices int `json:"max_slices" yaml:"max_slices"` // Pad-grid budget of the sampler
}

// DefaultConfig returns the standard analysis configuration
func DefaultConfig() Config {
	return Config{
		FrameSize:            2048,
		HopSize:              512,
		MFCCCoefficients:     13,
		OnsetYieldInterval:   10,
		FeatureYieldInterval: 5,
		KernelSeconds:        3.0,
		NoveltyMultiplier:    0.3,
		MaxSlices:            16,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.FrameSize <= 0 {
		c.FrameSize = def.FrameSize
	}
	if c.HopSize <= 0 {
		c.HopSize = def.HopSize
	}
	if c.MFCCCoefficients <= 0 {
		c.MFCCCoefficients = def.MFCCCoefficients
	}
	if c.OnsetYieldInterval <= 0 {
		c.OnsetYieldInterval = def.OnsetYieldInterval
	}
	if c.FeatureYieldInterval <= 0 {
		c.FeatureYieldInterval = def.FeatureYieldInterval
	}
	if c.KernelSeconds <= 0 {
		c.KernelSeconds = def.KernelSeconds
	}
	if c.NoveltyMultiplier <= 0 {
		c.NoveltyMultiplier = def.NoveltyMultiplier
	}
	if c.MaxSlices <= 0 {
		c.MaxSlices = def.MaxSlices
	}

	return c
}

// ProgressFunc receives fractional progress in [0, 1]. Callbacks are
// invoked from the analysis goroutine and should return quickly.
type ProgressFunc func(progress float64)

// OnsetParams configures a single onset detection call
type OnsetParams struct {
	// Sensitivity in [0, 1]; higher values lower the effective
	// threshold and produce more onsets
	Sensitivity float64 `json:"sensitivity" yaml:"sensitivity"`

	// MinDistance is the minimum spacing between onsets in seconds
	MinDistance float64 `json:"min_distance" yaml:"min_distance"`

	OnProgress ProgressFunc `json:"-" yaml:"-"`
}

// DefaultOnsetParams returns the standard onset detection parameters
func DefaultOnsetParams() OnsetParams {
	return OnsetParams{
		Sensitivity: 0.5,
		MinDistance: 0.05,
	}
}

// StructureParams configures a single structure detection call
type StructureParams struct {
	// MaxSections caps the number of labeled sections
	MaxSections int `json:"max_sections" yaml:"max_sections"`

	// MinSectionDuration is the minimum section length in seconds
	MinSectionDuration float64 `json:"min_section_duration" yaml:"min_section_duration"`

	OnProgress ProgressFunc `json:"-" yaml:"-"`
}

// DefaultStructureParams returns the standard structure detection parameters
func DefaultStructureParams() StructureParams {
	return StructureParams{
		MaxSections:        8,
		MinSectionDuration: 5.0,
	}
}
