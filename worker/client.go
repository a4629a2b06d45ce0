package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordo-v1su4/samplerista-engine/analysis"
	"github.com/gordo-v1su4/samplerista-engine/logging"
)

// ErrClosed is returned for calls made after the worker has terminated
// and the client observed its event channel close
var ErrClosed = errors.New("worker client closed")

// WorkerError is a failure reported across the worker boundary
type WorkerError struct {
	Message string
	Stack   string
}

func (e *WorkerError) Error() string {
	return e.Message
}

// pendingCall tracks one in-flight request in the correlation table
type pendingCall struct {
	terminal   chan Event
	onProgress analysis.ProgressFunc
}

// Client is the host-side end of the worker boundary. It assigns request
// ids, keeps the correlation table of pending calls, routes progress
// events to per-call callbacks, and resolves each call with its terminal
// event. Events with no matching pending request are dropped silently.
type Client struct {
	requests chan<- Request
	nextID   atomic.Int64
	logger   logging.Logger

	mu      sync.Mutex
	pending map[int64]*pendingCall
	closed  bool
}

// NewClient creates a client bound to a worker and starts the event
// dispatch goroutine. The worker must already be running (or started
// promptly) for calls to resolve.
func NewClient(w *Worker) *Client {
	c := &Client{
		requests: w.Requests(),
		pending:  make(map[int64]*pendingCall),
		logger: logging.WithFields(logging.Fields{
			"component": "analysis_client",
		}),
	}

	go c.dispatch(w.Events())
	return c
}

// dispatch routes worker events to pending calls by id until the event
// channel closes, then fails whatever is still pending
func (c *Client) dispatch(events <-chan Event) {
	for event := range events {
		c.mu.Lock()
		call, ok := c.pending[event.ID]
		if ok && event.Terminal() {
			delete(c.pending, event.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Uncorrelated event: nothing is listening for this id
			c.logger.Debug("dropping uncorrelated event", logging.Fields{
				"id":    event.ID,
				"event": string(event.Type),
			})
			continue
		}

		if event.Type == EventProgress {
			if call.onProgress != nil {
				call.onProgress(event.Progress)
			}
			continue
		}

		call.terminal <- event
	}

	// Worker is gone; resolve remaining calls with an error
	c.mu.Lock()
	remaining := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.closed = true
	c.mu.Unlock()

	for id, call := range remaining {
		call.terminal <- Event{
			ID:   id,
			Type: EventError,
			Err:  &ErrorInfo{Message: "worker terminated"},
		}
	}
}

// call submits a request and blocks until its terminal event or context
// cancellation. Abandoning a call stops listening only; the worker still
// runs the request to completion.
func (c *Client) call(ctx context.Context, command Command, payload *Payload, onProgress analysis.ProgressFunc) (*Event, error) {
	id := c.nextID.Add(1)
	call := &pendingCall{
		terminal:   make(chan Event, 1),
		onProgress: onProgress,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = call
	c.mu.Unlock()

	select {
	case c.requests <- Request{ID: id, Command: command, Payload: payload}:
	case <-ctx.Done():
		c.abandon(id)
		return nil, ctx.Err()
	}

	select {
	case event := <-call.terminal:
		if event.Type == EventError {
			return nil, &WorkerError{Message: event.Err.Message, Stack: event.Err.Stack}
		}
		return &event, nil
	case <-ctx.Done():
		c.abandon(id)
		return nil, ctx.Err()
	}
}

func (c *Client) abandon(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Init initializes the worker's engine
func (c *Client) Init(ctx context.Context) error {
	_, err := c.call(ctx, CommandInit, nil, nil)
	return err
}

// DetectOnsets runs onset detection on pre-downmixed mono samples
func (c *Client) DetectOnsets(ctx context.Context, samples []float32, sampleRate int, params analysis.OnsetParams) (*OnsetPayload, error) {
	event, err := c.call(ctx, CommandDetectOnsets, &Payload{
		Samples:     samples,
		SampleRate:  sampleRate,
		Sensitivity: params.Sensitivity,
		MinDistance: params.MinDistance,
	}, params.OnProgress)
	if err != nil {
		return nil, err
	}

	result, ok := event.Result.(*OnsetPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected result payload for %s", CommandDetectOnsets)
	}
	return result, nil
}

// DetectBPM runs tempo estimation on pre-downmixed mono samples
func (c *Client) DetectBPM(ctx context.Context, samples []float32, sampleRate int) (*BPMPayload, error) {
	event, err := c.call(ctx, CommandDetectBPM, &Payload{
		Samples:    samples,
		SampleRate: sampleRate,
	}, nil)
	if err != nil {
		return nil, err
	}

	result, ok := event.Result.(*BPMPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected result payload for %s", CommandDetectBPM)
	}
	return result, nil
}

// DetectStructure runs structure segmentation on pre-downmixed mono
// samples
func (c *Client) DetectStructure(ctx context.Context, samples []float32, sampleRate int, params analysis.StructureParams) (*StructurePayload, error) {
	event, err := c.call(ctx, CommandDetectStructure, &Payload{
		Samples:            samples,
		SampleRate:         sampleRate,
		MaxSections:        params.MaxSections,
		MinSectionDuration: params.MinSectionDuration,
	}, params.OnProgress)
	if err != nil {
		return nil, err
	}

	result, ok := event.Result.(*StructurePayload)
	if !ok {
		return nil, fmt.Errorf("unexpected result payload for %s", CommandDetectStructure)
	}
	return result, nil
}

// Cleanup releases the worker engine's resources
func (c *Client) Cleanup(ctx context.Context) error {
	_, err := c.call(ctx, CommandCleanup, nil, nil)
	return err
}
