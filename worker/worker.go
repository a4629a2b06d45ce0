package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/gordo-v1su4/samplerista-engine/analysis"
	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// ErrUnknownCommand is reported (as an error event) for requests whose
// command the worker does not recognize
var ErrUnknownCommand = fmt.Errorf("unknown worker command")

// Worker serves an Engine over channels. Requests are processed strictly
// in order by a single goroutine: one worker is one logical execution
// context, matching the engine's no-internal-parallelism model.
type Worker struct {
	engine   *analysis.Engine
	requests chan Request
	events   chan Event
	logger   logging.Logger
}

// New creates a worker around the given engine. queueSize bounds the
// number of requests waiting to be served.
func New(engine *analysis.Engine, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Worker{
		engine:   engine,
		requests: make(chan Request, queueSize),
		events:   make(chan Event, queueSize*4),
		logger: logging.WithFields(logging.Fields{
			"component": "analysis_worker",
		}),
	}
}

// Requests returns the channel requests are submitted on
func (w *Worker) Requests() chan<- Request {
	return w.requests
}

// Events returns the channel worker events are emitted on
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Run serves requests until the context is canceled or the request
// channel is closed, then closes the event channel. Run blocks; callers
// start it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.requests:
			if !ok {
				return
			}
			w.serve(ctx, req)
		}
	}
}

// serve handles one request and emits exactly one terminal event for it
func (w *Worker) serve(ctx context.Context, req Request) {
	defer func() {
		// A panic anywhere in the pipeline becomes the request's
		// terminal error event rather than tearing down the worker
		if r := recover(); r != nil {
			w.emitError(req.ID, fmt.Errorf("panic: %v", r), string(debug.Stack()))
		}
	}()

	w.logger.Debug("serving request", logging.Fields{
		"id":      req.ID,
		"command": string(req.Command),
	})

	switch req.Command {
	case CommandInit:
		if err := w.engine.Initialize(ctx); err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		w.emit(Event{ID: req.ID, Type: EventInitialized})

	case CommandDetectOnsets:
		buf, err := w.payloadBuffer(req)
		if err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		result, err := w.engine.DetectOnsets(ctx, buf, analysis.OnsetParams{
			Sensitivity: req.Payload.Sensitivity,
			MinDistance: req.Payload.MinDistance,
			OnProgress:  w.progressFunc(req.ID),
		})
		if err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		w.emit(Event{ID: req.ID, Type: EventResult, Result: result})

	case CommandDetectBPM:
		buf, err := w.payloadBuffer(req)
		if err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		result, err := w.engine.DetectBPM(ctx, buf)
		if err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		w.emit(Event{ID: req.ID, Type: EventResult, Result: result})

	case CommandDetectStructure:
		buf, err := w.payloadBuffer(req)
		if err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		result, err := w.engine.DetectSongStructure(ctx, buf, analysis.StructureParams{
			MaxSections:        req.Payload.MaxSections,
			MinSectionDuration: req.Payload.MinSectionDuration,
			OnProgress:         w.progressFunc(req.ID),
		})
		if err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		w.emit(Event{ID: req.ID, Type: EventResult, Result: result})

	case CommandCleanup:
		if err := w.engine.Cleanup(); err != nil {
			w.emitError(req.ID, err, "")
			return
		}
		w.emit(Event{ID: req.ID, Type: EventResult})

	default:
		w.emitError(req.ID, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command), "")
	}
}

// payloadBuffer validates a request payload and wraps it as a sample
// buffer
func (w *Worker) payloadBuffer(req Request) (*analysis.SampleBuffer, error) {
	if req.Payload == nil {
		return nil, fmt.Errorf("command %s requires a payload", req.Command)
	}
	return analysis.NewSampleBuffer(req.Payload.Samples, req.Payload.SampleRate)
}

func (w *Worker) progressFunc(id int64) analysis.ProgressFunc {
	return func(progress float64) {
		w.emit(Event{ID: id, Type: EventProgress, Progress: progress})
	}
}

func (w *Worker) emit(event Event) {
	w.events <- event
}

func (w *Worker) emitError(id int64, err error, stack string) {
	w.logger.Error(err, "request failed", logging.Fields{"id": id})
	w.emit(Event{
		ID:   id,
		Type: EventError,
		Err: &ErrorInfo{
			Message: err.Error(),
			Stack:   stack,
		},
	})
}
