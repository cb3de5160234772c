package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cascade-http/cascade/internal/journal"
	"github.com/cascade-http/cascade/internal/pipeline"
	"github.com/cascade-http/cascade/internal/respond"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(opts ...Option) *Server {
	return New(0, 5*time.Second, quietLogger(), false, opts...)
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandle_Success(t *testing.T) {
	s := newTestServer()
	s.Handle(http.MethodGet, "/widgets/{id}", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "load",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					bag["widget"] = "widget-" + bag.String("id")
					return nil
				},
			},
			{
				Number: 200,
				Name:   "respond",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					return w.JSON(http.StatusOK, map[string]string{"widget": bag.String("widget")})
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/widgets/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["widget"] != "widget-7" {
		t.Errorf("widget = %q", body["widget"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHandle_StepFailureBody(t *testing.T) {
	s := newTestServer()
	s.Handle(http.MethodGet, "/fail", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "prepare",
				Run: func(_ context.Context, _ pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					return nil
				},
			},
			{
				Number: 200,
				Name:   "lookup",
				Run: func(_ context.Context, _ pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					return pipeline.NewStatusError(http.StatusNotFound, "widget not found")
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/fail", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Error.Message != "widget not found" {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Error.StatusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d", body.Error.StatusCode)
	}
	if body.Error.Step == nil || body.Error.Step.Number != 200 || body.Error.Step.Name != "lookup" {
		t.Errorf("step = %+v", body.Error.Step)
	}
	if body.Error.Stack != "" {
		t.Error("stack exposed without WithExposeStack")
	}
}

func TestHandle_ExposeStack(t *testing.T) {
	s := newTestServer(WithExposeStack(true))
	s.Handle(http.MethodGet, "/fail", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "explode",
				Run: func(_ context.Context, _ pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					return errors.New("boom")
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/fail", nil))

	body := decodeErrorBody(t, rec)
	if body.Error.Stack == "" {
		t.Error("expected a stack trace with WithExposeStack")
	}
	if body.Error.StatusCode != http.StatusInternalServerError {
		t.Errorf("statusCode = %d", body.Error.StatusCode)
	}
}

func TestHandle_EmptyPipeline(t *testing.T) {
	s := newTestServer()
	s.Handle(http.MethodGet, "/empty", Pipeline{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/empty", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Error.Message != "no steps to execute" {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Error.Step != nil {
		t.Errorf("step = %+v, want omitted", body.Error.Step)
	}
}

func TestHandle_BackgroundTasksRunAfterResponse(t *testing.T) {
	s := newTestServer()

	ran := make(chan string, 2)
	s.Handle(http.MethodGet, "/tasks", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "respond",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					bag["payload"] = "ready"
					return w.Text(http.StatusOK, "ok")
				},
			},
		},
		Tasks: []pipeline.Task{
			{
				Name: "notify",
				Run: func(_ context.Context, bag pipeline.Bag) error {
					ran <- "notify:" + bag.String("payload")
					return nil
				},
			},
			{
				Name: "fails",
				Run: func(_ context.Context, _ pipeline.Bag) error {
					ran <- "fails"
					return errors.New("task failure")
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/tasks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[<-ran] = true
	}
	if !seen["notify:ready"] {
		t.Error("task did not observe the final bag")
	}
	if !seen["fails"] {
		t.Error("failing task did not run")
	}
}

func TestHandle_JournalRecordsRequests(t *testing.T) {
	store := journal.NewMemoryStore()
	s := newTestServer(WithJournal(store))

	s.Handle(http.MethodGet, "/ok", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "respond",
				Run: func(_ context.Context, _ pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					return w.Text(http.StatusOK, "ok")
				},
			},
		},
	})
	s.Handle(http.MethodGet, "/bad", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 200,
				Name:   "explode",
				Run: func(_ context.Context, _ pipeline.Bag, _ *http.Request, _ *respond.Responder) error {
					return errors.New("boom")
				},
			},
		},
	})

	for _, path := range []string{"/ok", "/bad"} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	byPath := map[string]journal.Entry{}
	for _, e := range entries {
		byPath[e.Path] = e
	}
	ok := byPath["/ok"]
	if ok.Outcome != "ok" || ok.Status != http.StatusOK || ok.Method != "GET" {
		t.Errorf("ok entry = %+v", ok)
	}
	if ok.RequestID == "" || ok.ID == "" {
		t.Error("ok entry missing identifiers")
	}
	bad := byPath["/bad"]
	if bad.Outcome != "error" || bad.Status != http.StatusInternalServerError {
		t.Errorf("bad entry = %+v", bad)
	}
	if bad.StepNumber != 200 {
		t.Errorf("bad entry step = %d, want 200", bad.StepNumber)
	}
	if bad.Error == "" {
		t.Error("bad entry missing error message")
	}
}

func TestHandle_RouteParamsSeedBag(t *testing.T) {
	s := newTestServer()

	var got string
	s.Handle(http.MethodGet, "/users/{userID}/posts/{postID}", Pipeline{
		Steps: []pipeline.Step{
			{
				Number: 100,
				Name:   "respond",
				Run: func(_ context.Context, bag pipeline.Bag, _ *http.Request, w *respond.Responder) error {
					got = bag.String("userID") + "/" + bag.String("postID")
					return w.Text(http.StatusOK, "ok")
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/users/u1/posts/p2", nil))

	if got != "u1/p2" {
		t.Errorf("route params in bag = %q", got)
	}
}
