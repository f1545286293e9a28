package session

import (
	"errors"
	"fmt"
)

type State int

const (
	Empty       State = iota // no image
	ImageLoaded              // image present, no result yet
	Analyzing                // initial analysis in flight
	ResultShown              // result present, refinement enabled
	Refining                 // refinement in flight
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case ImageLoaded:
		return "image_loaded"
	case Analyzing:
		return "analyzing"
	case ResultShown:
		return "result_shown"
	case Refining:
		return "refining"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InFlight reports whether a request is outstanding in this state.
func (s State) InFlight() bool { return s == Analyzing || s == Refining }

// Slot is an input that is filled by reading a user-selected file.
type Slot int

const (
	SlotImage Slot = iota
	SlotReference
)

func (s Slot) String() string {
	if s == SlotImage {
		return "image"
	}
	return "reference"
}

var (
	ErrBusy            = errors.New("session: a request is already in flight")
	ErrNothingToRefine = errors.New("session: refinement needs text or an attachment")
	ErrReadPending     = errors.New("session: a file read into this slot is still pending")
	ErrNotInFlight     = errors.New("session: no request in flight")
	ErrNotImage        = errors.New("session: primary file is not an image")
	ErrUnsupportedFile = errors.New("session: attachment must be an image, PDF or plain text")
)

// TransitionError reports an operation not allowed in the current state.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: %s not allowed in state %s", e.Op, e.From)
}
