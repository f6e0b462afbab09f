// Package bridge delivers one generation's events to a client as a buffered
// answer or an NDJSON stream and fires the terminal side effects once.
package bridge

import (
	"fmt"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
)

// Event is one of Fragment, Sources, Done or Failed. Done and Failed are
// terminal; nothing follows them.
type Event interface {
	isEvent()
}

type (
	Fragment struct {
		Text string
	}

	Sources struct {
		Citations []model.Citation
	}

	Done struct{}

	Failed struct {
		Detail any
	}
)

func (Fragment) isEvent() {}
func (Sources) isEvent()  {}
func (Done) isEvent()     {}
func (Failed) isEvent()   {}

func isTerminal(ev Event) bool {
	switch ev.(type) {
	case Done, Failed:
		return true
	default:
		return false
	}
}

// GenerationError carries the detail of a Failed event. Cause is set when
// the failure originates in the session itself rather than the agent.
type GenerationError struct {
	Detail any
	Cause  error
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

func (e *GenerationError) Error() string {
	switch d := e.Detail.(type) {
	case error:
		return "generation failed: " + d.Error()
	case string:
		return "generation failed: " + d
	default:
		return fmt.Sprintf("generation failed: %v", d)
	}
}

// TransportError wraps a failed frame write.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "writing frame: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
