package analysis

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gordo-v1su4/samplerista-engine/algorithms/windowing"
	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// ErrNotInitialized is returned by analysis calls before Initialize has
// succeeded (or after Cleanup)
var ErrNotInitialized = errors.New("analysis engine not initialized")

// Engine is the public entry point of the analysis pipeline. One Engine
// serves one logical worker context: analysis calls run as single
// cooperative tasks with no internal parallelism, so true concurrency
// comes from running independent Engine instances.
//
// The only state shared across calls is the window coefficient cache,
// which is write-once-per-key and safe to share.
type Engine struct {
	cfg    Config
	logger logging.Logger

	mu          sync.Mutex
	initFlight  singleflight.Group
	initialized bool

	cache     *windowing.Cache
	onsets    *OnsetDetector
	tempo     *TempoEstimator
	structure *StructureSegmenter
}

// NewEngine creates an engine with the given configuration. Zero-valued
// config fields fall back to defaults. The engine must be Initialized
// before use.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg: cfg.withDefaults(),
		logger: logging.WithFields(logging.Fields{
			"component": "analysis_engine",
		}),
	}
}

// Initialize prepares the engine for analysis calls. Idempotent and
// memoized: concurrent callers share a single in-flight initialization
// and all observe its outcome. On failure, state is reset so a retry is
// possible. May be called again after Cleanup to revive the instance.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err, _ := e.initFlight.Do("init", func() (any, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.initialized {
			return nil, nil
		}

		cache := windowing.NewCache()
		tempo := NewTempoEstimator()

		e.cache = cache
		e.tempo = tempo
		e.onsets = NewOnsetDetector(e.cfg, cache)
		e.structure = NewStructureSegmenter(e.cfg, cache, tempo)
		e.initialized = true

		e.logger.Info("analysis engine initialized", logging.Fields{
			"frame_size": e.cfg.FrameSize,
			"hop_size":   e.cfg.HopSize,
		})

		return nil, nil
	})

	return err
}

// IsAvailable reports whether the engine is initialized and live
func (e *Engine) IsAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Cleanup releases engine resources. Safe to call multiple times; after
// Cleanup the engine is unavailable until the next Initialize.
func (e *Engine) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}

	e.cache.Reset()
	e.cache = nil
	e.onsets = nil
	e.tempo = nil
	e.structure = nil
	e.initialized = false

	e.logger.Info("analysis engine cleaned up")
	return nil
}

// DetectOnsets finds transient locations in the buffer
func (e *Engine) DetectOnsets(ctx context.Context, buf *SampleBuffer, params OnsetParams) (*OnsetResult, error) {
	detector, err := e.onsetDetector()
	if err != nil {
		return nil, err
	}
	return detector.Detect(ctx, buf, params)
}

// DetectBPM estimates the buffer's tempo. Tempo is advisory: the call
// only fails when the engine is unavailable, never because the estimate
// itself is unreliable.
func (e *Engine) DetectBPM(ctx context.Context, buf *SampleBuffer) (*BPMResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	tempo := e.tempo
	e.mu.Unlock()
	if tempo == nil {
		return nil, ErrNotInitialized
	}

	return tempo.Estimate(buf), nil
}

// DetectSongStructure segments the buffer into labeled sections with an
// attached tempo estimate
func (e *Engine) DetectSongStructure(ctx context.Context, buf *SampleBuffer, params StructureParams) (*SongStructureResult, error) {
	e.mu.Lock()
	segmenter := e.structure
	e.mu.Unlock()
	if segmenter == nil {
		return nil, ErrNotInitialized
	}

	return segmenter.Detect(ctx, buf, params)
}

func (e *Engine) onsetDetector() (*OnsetDetector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.onsets == nil {
		return nil, ErrNotInitialized
	}
	return e.onsets, nil
}
