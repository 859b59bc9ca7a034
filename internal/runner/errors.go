package runner

import (
	"errors"
	"fmt"

	"github.com/jakopako/uiverify/internal/types"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	KindNavigation      ErrorKind = "navigation"
	KindWaitTimeout     ErrorKind = "wait_timeout"
	KindElementNotFound ErrorKind = "element_not_found"
	KindSession         ErrorKind = "session"
	KindArtifact        ErrorKind = "artifact"
	KindBrowser         ErrorKind = "browser"
	KindCancelled       ErrorKind = "cancelled"
)

var (
	ErrNavigation      = errors.New("navigation failed")
	ErrWaitTimeout     = errors.New("wait timed out")
	ErrElementNotFound = errors.New("element not found")
	ErrSession         = errors.New("browser session failed")
	ErrArtifact        = errors.New("artifact not written")
	ErrBrowser         = errors.New("browser error")
	ErrCancelled       = errors.New("run cancelled")
)

var kindErrors = map[ErrorKind]error{
	KindNavigation:      ErrNavigation,
	KindWaitTimeout:     ErrWaitTimeout,
	KindElementNotFound: ErrElementNotFound,
	KindSession:         ErrSession,
	KindArtifact:        ErrArtifact,
	KindBrowser:         ErrBrowser,
	KindCancelled:       ErrCancelled,
}

// StepError is the first failure of a run. Index is the position of the
// failed step in the executed sequence, the initial navigation being 0.
// Index is -1 if the session could not be opened.
type StepError struct {
	Kind  ErrorKind
	Index int
	Step  types.Step
	Err   error
}

func (e *StepError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("step %d (%s) failed: %s: %v", e.Index, e.Step.Describe(), e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind, so that
// errors.Is(err, ErrWaitTimeout) holds for a wait timeout.
func (e *StepError) Is(target error) bool {
	return kindErrors[e.Kind] == target
}
