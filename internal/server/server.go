// Package server is the HTTP boundary of the pipeline engine: a chi
// router whose handlers run step pipelines, translate step failures
// into uniform JSON error bodies, and hand the final bag to the
// background runner.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cascade-http/cascade/internal/background"
	"github.com/cascade-http/cascade/internal/journal"
	"github.com/cascade-http/cascade/internal/metrics"
	"github.com/cascade-http/cascade/internal/pipeline"
	"github.com/cascade-http/cascade/internal/respond"
)

// Bag keys the server seeds before the first step runs.
const (
	BagRequestID = "requestID"
	BagMethod    = "method"
	BagPath      = "path"
)

// Pipeline pairs a route's ordered steps with its background tasks.
type Pipeline struct {
	Steps []pipeline.Step
	Tasks []pipeline.Task
}

// Server routes requests into step pipelines.
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	logger      *slog.Logger
	tasks       *background.Runner
	journal     journal.Store
	renderer    respond.Renderer
	exposeStack bool
	port        int
}

// Option configures a Server.
type Option func(*Server)

// WithJournal records every completed request into store via a
// background task appended after the route's own tasks.
func WithJournal(store journal.Store) Option {
	return func(s *Server) { s.journal = store }
}

// WithRenderer sets the template renderer handed to responders.
func WithRenderer(r respond.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithExposeStack includes stack traces in error bodies. Development
// only.
func WithExposeStack(expose bool) Option {
	return func(s *Server) { s.exposeStack = expose }
}

// New creates a server with the standard middleware stack.
func New(port int, timeout time.Duration, logger *slog.Logger, metricsEnabled bool, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger: logger,
		tasks:  background.NewRunner(logger),
		port:   port,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "cascade")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if metricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	s.router = r
	return s
}

// Router exposes the underlying router so callers can mount additional
// plain handlers next to pipeline routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handle registers a pipeline for method and pattern. Steps are sorted
// once at registration.
func (s *Server) Handle(method, pattern string, p Pipeline) {
	exec := pipeline.NewExecutor(p.Steps)
	s.router.MethodFunc(method, pattern, s.pipelineHandler(exec, p.Tasks))
}

func (s *Server) pipelineHandler(exec *pipeline.Executor, tasks []pipeline.Task) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		bag := pipeline.NewBag()
		bag[BagRequestID] = GetRequestID(r.Context())
		bag[BagMethod] = r.Method
		bag[BagPath] = r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				bag[key] = rctx.URLParams.Values[i]
			}
		}

		rw := respond.New(w, r, respond.WithRenderer(s.renderer))
		err := exec.Run(r.Context(), bag, r, rw)

		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
			s.writeStepError(r.Context(), rw, err)
		}
		metrics.PipelineRuns.WithLabelValues(outcome).Inc()
		metrics.PipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

		// The response is done with the bag; hand it off. Tasks get a
		// context detached from the request so client disconnects and
		// handler teardown cannot cancel them.
		all := tasks[:len(tasks):len(tasks)]
		if s.journal != nil {
			all = append(all, journal.Task(s.journal, s.journalEntry(r, rw, err, start)))
		}
		s.tasks.Launch(context.WithoutCancel(r.Context()), all, bag)
	}
}

func (s *Server) journalEntry(r *http.Request, rw *respond.Responder, runErr error, start time.Time) journal.Entry {
	e := journal.Entry{
		ID:        uuid.New().String(),
		RequestID: GetRequestID(r.Context()),
		Method:    r.Method,
		Path:      r.URL.Path,
		Status:    rw.Status(),
		Outcome:   metrics.OutcomeOK,
		Duration:  time.Since(start),
		CreatedAt: time.Now().UTC(),
	}
	if runErr != nil {
		e.Outcome = metrics.OutcomeError
		e.Error = runErr.Error()
		var se *pipeline.StepError
		if errors.As(runErr, &se) {
			e.Status = se.HTTPStatusCode()
			if se.Step != nil {
				e.StepNumber = se.Step.Number
			}
		}
	}
	return e
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.port))
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and drains in-flight background
// tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.tasks.Wait(ctx)
}

// Drain waits for in-flight background tasks without touching the HTTP
// listener. Used in tests and by callers that manage the listener
// themselves.
func (s *Server) Drain(ctx context.Context) error {
	return s.tasks.Wait(ctx)
}
