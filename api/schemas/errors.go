// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a run failed. Callers only see exit code 1, so the kind
// is what ends up in logs, metrics and the RunResult.
type ErrorKind string

const (
	// ErrKindConfiguration means a required setting is missing or malformed.
	// It is raised before any browser session exists.
	ErrKindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	// ErrKindNavigation covers an unreachable automation endpoint or admin URL.
	ErrKindNavigation ErrorKind = "NAVIGATION_ERROR"
	// ErrKindElementNotFound means an expected control did not become visible in time.
	ErrKindElementNotFound ErrorKind = "ELEMENT_NOT_FOUND"
	// ErrKindAuthentication means the login form was still shown after submitting.
	ErrKindAuthentication ErrorKind = "AUTHENTICATION_ERROR"
	// ErrKindConfirmationTimeout means no restart signal appeared after the trigger.
	ErrKindConfirmationTimeout ErrorKind = "CONFIRMATION_TIMEOUT"
)

// Sentinels for errors.Is matching against a StepError's kind.
var (
	ErrConfiguration       = &kindError{ErrKindConfiguration}
	ErrNavigation          = &kindError{ErrKindNavigation}
	ErrElementNotFound     = &kindError{ErrKindElementNotFound}
	ErrAuthentication      = &kindError{ErrKindAuthentication}
	ErrConfirmationTimeout = &kindError{ErrKindConfirmationTimeout}
)

type kindError struct{ kind ErrorKind }

func (k *kindError) Error() string { return string(k.kind) }

// StepError is returned by every SessionDriver operation that fails in a
// classified way. Step names the UI step (e.g. "Reboot button").
type StepError struct {
	Kind ErrorKind
	Step string
	Err  error
}

// NewStepError builds a StepError. err may be nil.
func NewStepError(kind ErrorKind, step string, err error) *StepError {
	return &StepError{Kind: kind, Step: step, Err: err}
}

func (e *StepError) Error() string {
	msg := string(e.Kind)
	if e.Step != "" {
		msg = fmt.Sprintf("%s at %q", msg, e.Step)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, schemas.ErrAuthentication) match on kind.
func (e *StepError) Is(target error) bool {
	k, ok := target.(*kindError)
	return ok && k.kind == e.Kind
}

// KindOf extracts the ErrorKind from err. Unclassified errors are reported as
// navigation failures, since they come from the automation transport.
func KindOf(err error) ErrorKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrKindNavigation
}
