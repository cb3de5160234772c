package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// StepError is the uniform failure produced when a pipeline cannot
// complete normally. It identifies the step that was executing when the
// failure occurred (nil when the failure occurred outside step scope,
// e.g. an empty step list), wraps the underlying failure, and carries
// the shared bag and a stack capture for development-mode surfacing.
type StepError struct {
	Message    string
	Step       *Step
	Err        error
	Bag        Bag
	StatusCode int
	Stack      []byte
}

func (e *StepError) Error() string {
	if e.Step != nil {
		return fmt.Sprintf("step %d (%s): %s", e.Step.Number, e.Step.Name, e.Message)
	}
	return e.Message
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the resolved status classification, defaulting
// to 500 when none was set.
func (e *StepError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// statusCarrier is implemented by errors that suggest their own HTTP
// status code.
type statusCarrier interface {
	HTTPStatusCode() int
}

// StatusError is a failure with an explicit HTTP status, for steps that
// want e.g. a 404 to flow through the pipeline error model unchanged.
type StatusError struct {
	Code    int
	Message string
}

// NewStatusError creates a StatusError with the given status code.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

func (e *StatusError) Error() string {
	return e.Message
}

func (e *StatusError) HTTPStatusCode() int {
	return e.Code
}

// newStepError wraps a step-body failure, copying the status
// classification when the underlying error exposes one. An error that
// already is a *StepError passes through unchanged so nested pipelines
// keep their original step identity.
func newStepError(step *Step, err error, bag Bag) *StepError {
	var existing *StepError
	if errors.As(err, &existing) {
		return existing
	}

	status := http.StatusInternalServerError
	var sc statusCarrier
	if errors.As(err, &sc) {
		status = sc.HTTPStatusCode()
	}

	stack := debug.Stack()
	var pf *panicFailure
	if errors.As(err, &pf) {
		stack = pf.stack
	}

	return &StepError{
		Message:    err.Error(),
		Step:       step,
		Err:        err,
		Bag:        bag,
		StatusCode: status,
		Stack:      stack,
	}
}
