package session

import "errors"

// ErrNotFound is returned when no session matches the requested id.
var ErrNotFound = errors.New("session not found")

// Outcome is the coarse result class of a session operation.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeInternal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Classify maps an operation error onto an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeInternal
	}
}
