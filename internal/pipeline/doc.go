// Package pipeline provides the step execution engine.
//
// A route's handler is an ordered list of numbered steps sharing one
// mutable context bag. Steps run strictly sequentially in ascending
// number order; after each step the executor consults the response
// guard and halts as soon as a response has been initiated. A step
// failure halts the pipeline and surfaces as a *StepError carrying the
// failing step's identity.
//
// # Step Contract
//
// Steps receive the shared Bag, the request, and the guarded response
// surface. A step may mutate the bag, produce a response, or fail:
//
//	func(ctx context.Context, bag pipeline.Bag, r *http.Request, w *respond.Responder) error
//
// Steps are constructed once at route registration and reused across
// requests; keeping them stateless is the step author's responsibility.
//
// # Background Tasks
//
// Task descriptors name work that runs after the pipeline concludes,
// decoupled from the HTTP response. They are launched by the background
// runner, not by the executor.
package pipeline
