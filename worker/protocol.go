// Package worker runs an analysis engine in an isolated goroutine behind
// a message-passing boundary, exposing request/response/progress/error
// framing to the host. Requests and events are correlated by id; exactly
// one terminal event is emitted per request.
package worker

import (
	"github.com/gordo-v1su4/samplerista-engine/analysis"
)

// Command selects the engine operation a request performs
type Command string

const (
	CommandInit            Command = "INIT"
	CommandDetectOnsets    Command = "DETECT_ONSETS"
	CommandDetectBPM       Command = "DETECT_BPM"
	CommandDetectStructure Command = "DETECT_STRUCTURE"
	CommandCleanup         Command = "CLEANUP"
)

// Request is one unit of work sent to the worker. Payload carries raw
// mono sample data: the downmix happens on the caller's side of the
// boundary, never in the engine.
type Request struct {
	ID      int64    `json:"id"`
	Command Command  `json:"command"`
	Payload *Payload `json:"payload,omitempty"`
}

// Payload carries the sample data and per-call parameters of an
// analysis request
type Payload struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`

	// Onset parameters
	Sensitivity float64 `json:"sensitivity,omitempty"`
	MinDistance float64 `json:"min_distance,omitempty"`

	// Structure parameters
	MaxSections        int     `json:"max_sections,omitempty"`
	MinSectionDuration float64 `json:"min_section_duration,omitempty"`
}

// EventType discriminates worker events
type EventType string

const (
	// EventInitialized is the terminal success event for INIT
	EventInitialized EventType = "initialized"

	// EventProgress is advisory; zero or more may precede the terminal
	// event of a request
	EventProgress EventType = "progress"

	// EventResult is the terminal success event carrying a
	// command-specific result
	EventResult EventType = "result"

	// EventError is the terminal failure event
	EventError EventType = "error"
)

// Event is one message emitted by the worker, correlated to its request
// by ID
type Event struct {
	ID       int64      `json:"id"`
	Type     EventType  `json:"event"`
	Progress float64    `json:"progress,omitempty"`
	Result   any        `json:"payload,omitempty"`
	Err      *ErrorInfo `json:"error,omitempty"`
}

// Terminal reports whether the event completes its request
func (e *Event) Terminal() bool {
	return e.Type != EventProgress
}

// ErrorInfo is the serializable form of a worker-side failure
type ErrorInfo struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// OnsetPayload is the result payload of DETECT_ONSETS
type OnsetPayload = analysis.OnsetResult

// BPMPayload is the result payload of DETECT_BPM
type BPMPayload = analysis.BPMResult

// StructurePayload is the result payload of DETECT_STRUCTURE
type StructurePayload = analysis.SongStructureResult
