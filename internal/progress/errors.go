package progress

import (
	"errors"
	"fmt"
)

// Kind classifies failures the player view reacts to differently.
type Kind string

const (
	// KindLoad: catalog or enrollment fetch failed; the view shows a retry affordance.
	KindLoad Kind = "load_failure"
	// KindSave: a progress push failed; logged only, the local value is kept.
	KindSave Kind = "save_failure"
	// KindCompletion: the mark-complete request failed; the gate is back to unlockable.
	KindCompletion Kind = "completion_failure"
	// KindGate: completion was requested while the gate is still locked.
	KindGate Kind = "gate_violation"
)

var (
	ErrGateLocked    = errors.New("course content has not been fully consumed yet")
	ErrCourseMissing = errors.New("course not found")
	ErrTrackerClosed = errors.New("player session closed")
)

type Error struct {
	Kind     Kind
	CourseID int64
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (course %d)", e.Kind, e.CourseID)
	}
	return fmt.Sprintf("%s (course %d): %v", e.Kind, e.CourseID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, courseID int64, err error) *Error {
	return &Error{Kind: kind, CourseID: courseID, Err: err}
}

// LoadError wraps a failure to load the data a player session starts from.
func LoadError(courseID int64, err error) error {
	return newError(KindLoad, courseID, err)
}

func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
