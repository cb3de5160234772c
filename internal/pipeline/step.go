package pipeline

import (
	"context"
	"net/http"

	"github.com/cascade-http/cascade/internal/respond"
)

// HandlerFunc is the body of a single pipeline step.
type HandlerFunc func(ctx context.Context, bag Bag, r *http.Request, w *respond.Responder) error

// Step is one ordered unit of per-request work. Steps execute in
// ascending Number order. Name and Source are diagnostic only, typically
// derived from where the step was registered.
type Step struct {
	Number int
	Name   string
	Source string
	Run    HandlerFunc
}

// TaskFunc is the body of a background task. It receives the final bag
// of a completed pipeline run; the return value is only logged.
type TaskFunc func(ctx context.Context, bag Bag) error

// Task describes work launched after the pipeline concludes,
// independently of the HTTP response.
type Task struct {
	Name   string
	Source string
	Run    TaskFunc
}
