package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"

	"github.com/cascade-http/cascade/internal/respond"
)

// Executor runs a route's steps in ascending number order against one
// shared bag and one guarded response.
type Executor struct {
	steps []Step
}

// NewExecutor creates an executor from the given steps, ordering them
// by ascending number once. Duplicate numbers are a registration-time
// concern; the executor assumes the list is already validated.
func NewExecutor(steps []Step) *Executor {
	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})
	return &Executor{steps: ordered}
}

// Len returns the number of steps in the pipeline.
func (e *Executor) Len() int {
	return len(e.steps)
}

// Run executes the pipeline. It returns nil when a step produced a
// response, and a *StepError otherwise: when a step failed, when the
// step list was empty, or when every step completed without ever
// sending a response.
//
// After each step settles the executor first checks the response guard
// and halts if a response has been initiated, even when the same step
// also returned an error — a failure must not override a response
// already on the wire.
func (e *Executor) Run(ctx context.Context, bag Bag, r *http.Request, w *respond.Responder) error {
	if len(e.steps) == 0 {
		return &StepError{
			Message:    "no steps to execute",
			Bag:        bag,
			StatusCode: http.StatusInternalServerError,
			Stack:      debug.Stack(),
		}
	}

	for i := range e.steps {
		step := &e.steps[i]
		err := runStep(ctx, step, bag, r, w)

		if w.Committed() {
			return nil
		}
		if err != nil {
			return newStepError(step, err, bag)
		}
	}

	return &StepError{
		Message:    "pipeline completed without sending a response",
		Bag:        bag,
		StatusCode: http.StatusInternalServerError,
		Stack:      debug.Stack(),
	}
}

// runStep invokes one step body, converting a panic into an error so a
// misbehaving step surfaces like any other step failure.
func runStep(ctx context.Context, step *Step, bag Bag, r *http.Request, w *respond.Responder) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicFailure{value: rec, stack: debug.Stack()}
		}
	}()
	return step.Run(ctx, bag, r, w)
}

// panicFailure carries a recovered panic value and the stack captured
// at the panic site.
type panicFailure struct {
	value any
	stack []byte
}

func (e *panicFailure) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
