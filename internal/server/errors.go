package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cascade-http/cascade/internal/metrics"
	"github.com/cascade-http/cascade/internal/pipeline"
	"github.com/cascade-http/cascade/internal/respond"
)

// errorBody is the uniform JSON shape for pipeline failures:
// {"error":{"message","statusCode","step":{"number","name"},"stack"}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message    string     `json:"message"`
	StatusCode int        `json:"statusCode"`
	Step       *errorStep `json:"step,omitempty"`
	Stack      string     `json:"stack,omitempty"`
}

type errorStep struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// writeStepError translates a pipeline failure into the uniform JSON
// error body. When the response was already committed by the time the
// failure surfaced, nothing more can be written and the failure is
// logged only.
func (s *Server) writeStepError(ctx context.Context, rw *respond.Responder, err error) {
	var se *pipeline.StepError
	if !errors.As(err, &se) {
		se = &pipeline.StepError{
			Message:    err.Error(),
			Err:        err,
			StatusCode: http.StatusInternalServerError,
		}
	}

	attrs := []slog.Attr{
		slog.String("error", se.Message),
		slog.Int("status", se.HTTPStatusCode()),
	}
	if se.Step != nil {
		attrs = append(attrs,
			slog.Int("step_number", se.Step.Number),
			slog.String("step_name", se.Step.Name),
		)
		AddLogField(ctx, "failed_step", strconv.Itoa(se.Step.Number))
		metrics.StepFailures.WithLabelValues(se.Step.Name).Inc()
	}
	AddLogField(ctx, "error", se.Message)
	s.logger.LogAttrs(ctx, slog.LevelError, "pipeline failed", attrs...)

	if rw.Committed() {
		s.logger.LogAttrs(ctx, slog.LevelError, "pipeline failed after response was committed", attrs...)
		return
	}

	detail := errorDetail{
		Message:    se.Message,
		StatusCode: se.HTTPStatusCode(),
	}
	if se.Step != nil {
		detail.Step = &errorStep{Number: se.Step.Number, Name: se.Step.Name}
	}
	if s.exposeStack && len(se.Stack) > 0 {
		detail.Stack = string(se.Stack)
	}

	if werr := rw.JSON(se.HTTPStatusCode(), errorBody{Error: detail}); werr != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "write error response",
			slog.String("error", werr.Error()))
	}
}
