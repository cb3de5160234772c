package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cascade-http/cascade/internal/journal"
	"github.com/cascade-http/cascade/internal/pipeline"
	"github.com/cascade-http/cascade/internal/respond"
	"github.com/cascade-http/cascade/internal/server"
)

// registerRoutes wires the demo pipelines. Each route is an ordered
// list of numbered steps plus background tasks that run after the
// response.
func registerRoutes(srv *server.Server, store journal.Store, logger *slog.Logger) {
	srv.Handle(http.MethodGet, "/hello/{name}", server.Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "validate-name",
				Source: "cmd/cascade-server/routes.go",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					name := bag.String("name")
					if strings.TrimSpace(name) == "" {
						return pipeline.NewStatusError(http.StatusBadRequest, "name must not be blank")
					}
					if len(name) > 64 {
						return pipeline.NewStatusError(http.StatusBadRequest, "name too long")
					}
					return nil
				},
			},
			{
				Number: 200,
				Name:   "compose-greeting",
				Source: "cmd/cascade-server/routes.go",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					bag["greeting"] = fmt.Sprintf("Hello, %s!", bag.String("name"))
					return nil
				},
			},
			{
				Number: 300,
				Name:   "send-greeting",
				Source: "cmd/cascade-server/routes.go",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					return w.JSON(http.StatusOK, map[string]any{
						"greeting":  bag.String("greeting"),
						"requestId": bag.String(server.BagRequestID),
					})
				},
			},
		},
		Tasks: []pipeline.Task{
			{
				Name:   "audit-greeting",
				Source: "cmd/cascade-server/routes.go",
				Run: func(_ context.Context, bag pipeline.Bag) error {
					logger.Info("greeting served",
						slog.String("name", bag.String("name")),
						slog.String("request_id", bag.String(server.BagRequestID)),
					)
					return nil
				},
			},
		},
	})

	srv.Handle(http.MethodGet, "/journal", server.Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "list-recent-requests",
				Source: "cmd/cascade-server/routes.go",
				Run: func(ctx context.Context, _ pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					entries, err := store.Recent(ctx, 50)
					if err != nil {
						return err
					}
					out := make([]map[string]any, 0, len(entries))
					for _, e := range entries {
						out = append(out, map[string]any{
							"method":   e.Method,
							"path":     e.Path,
							"status":   e.Status,
							"outcome":  e.Outcome,
							"duration": e.Duration.String(),
						})
					}
					return w.JSON(http.StatusOK, map[string]any{"requests": out})
				},
			},
		},
	})

	// Root redirects to the journal view.
	srv.Handle(http.MethodGet, "/", server.Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "redirect-to-journal",
				Source: "cmd/cascade-server/routes.go",
				Run: func(_ context.Context, _ pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					return w.Redirect(http.StatusFound, "/journal")
				},
			},
		},
	})
}
