package respond

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newResponder(opts ...Option) (*Responder, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	return New(rec, req, opts...), rec
}

func TestJSON(t *testing.T) {
	rw, rec := newResponder()

	if err := rw.JSON(http.StatusCreated, map[string]string{"id": "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != `{"id":"42"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !rw.Sent() {
		t.Error("not marked sent")
	}
	if rw.Status() != http.StatusCreated {
		t.Errorf("Status() = %d", rw.Status())
	}
}

func TestDoubleResponseRejected(t *testing.T) {
	rw, rec := newResponder()

	if err := rw.Text(http.StatusOK, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := rw.JSON(http.StatusOK, map[string]string{"second": "true"})
	if !IsInProgress(err) {
		t.Fatalf("expected InProgressError, got %v", err)
	}
	var ipe *InProgressError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected *InProgressError, got %T", err)
	}
	if ipe.Attempted != "json" || ipe.Active != "send" {
		t.Errorf("attempted=%q active=%q", ipe.Attempted, ipe.Active)
	}

	// First response must be unaffected.
	if rec.Body.String() != "first" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rw.Status() != http.StatusOK {
		t.Errorf("Status() = %d", rw.Status())
	}
}

// gatedWriter blocks Write until released so pending is observable
// while a write is in flight.
type gatedWriter struct {
	*httptest.ResponseRecorder
	release chan struct{}
}

func (w *gatedWriter) Write(b []byte) (int, error) {
	<-w.release
	return w.ResponseRecorder.Write(b)
}

func TestPendingDuringInFlightWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	gw := &gatedWriter{ResponseRecorder: rec, release: make(chan struct{})}
	req := httptest.NewRequest("GET", "/test", nil)
	rw := New(gw, req)

	done := make(chan error, 1)
	go func() {
		done <- rw.Text(http.StatusOK, "slow body")
	}()

	// Pending must become observable before the write completes.
	for !rw.Committed() {
		time.Sleep(time.Millisecond)
	}
	if rw.Sent() {
		t.Error("marked sent while the write was still blocked")
	}

	// A racing second call is rejected while the first is pending.
	if err := rw.Text(http.StatusOK, "racer"); !IsInProgress(err) {
		t.Errorf("expected InProgressError, got %v", err)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if !rw.Sent() {
		t.Error("not marked sent after completion")
	}
	if rec.Body.String() != "slow body" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHeadersNotGuarded(t *testing.T) {
	rw, rec := newResponder()

	rw.Header().Set("X-Early", "1")
	if err := rw.Text(http.StatusOK, "ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Header mutation after commit is allowed; it just has no effect on
	// the already-written response.
	rw.Header().Set("X-Late", "1")

	if rec.Header().Get("X-Early") != "1" {
		t.Error("pre-response header lost")
	}
}

func TestRedirect(t *testing.T) {
	rw, rec := newResponder()

	if err := rw.Redirect(http.StatusFound, "/elsewhere"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/elsewhere" {
		t.Errorf("location = %q", loc)
	}
}

func TestRedirectRejectsNon3xx(t *testing.T) {
	rw, _ := newResponder()

	if err := rw.Redirect(http.StatusOK, "/elsewhere"); err == nil {
		t.Fatal("expected error")
	}
	// Validation failure must not consume the response.
	if rw.Committed() {
		t.Error("guard consumed by rejected redirect")
	}
	if err := rw.Text(http.StatusOK, "still fine"); err != nil {
		t.Errorf("responder unusable after rejected redirect: %v", err)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("file body"), 0o600); err != nil {
		t.Fatal(err)
	}

	rw, rec := newResponder()
	if err := rw.File(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "file body" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !rw.Sent() {
		t.Error("not marked sent")
	}
}

func TestFileMissingLeavesGuardIdle(t *testing.T) {
	rw, _ := newResponder()

	if err := rw.File("/does/not/exist"); err == nil {
		t.Fatal("expected error")
	}
	if rw.Committed() {
		t.Error("guard consumed by a missing file")
	}
}

func TestJSONEncodeErrorLeavesGuardIdle(t *testing.T) {
	rw, _ := newResponder()

	if err := rw.JSON(http.StatusOK, func() {}); err == nil {
		t.Fatal("expected encode error")
	}
	if rw.Committed() {
		t.Error("guard consumed by an unencodable value")
	}
	if err := rw.Text(http.StatusOK, "recovered"); err != nil {
		t.Errorf("responder unusable after encode error: %v", err)
	}
}

func TestRenderWithoutRenderer(t *testing.T) {
	rw, _ := newResponder()

	if err := rw.Render(http.StatusOK, "index.html", nil); err == nil {
		t.Fatal("expected error")
	}
	if rw.Committed() {
		t.Error("guard consumed without a renderer")
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>{{.Title}}</h1>"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmpl, err := LoadTemplates(dir, "*.html")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	rw, rec := newResponder(WithRenderer(tmpl))
	if err := rw.Render(http.StatusOK, "index.html", map[string]string{"Title": "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "<h1>hi</h1>" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestRenderUnknownTemplateLeavesGuardIdle(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("ok"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmpl, err := LoadTemplates(dir, "*.html")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	rw, _ := newResponder(WithRenderer(tmpl))
	if err := rw.Render(http.StatusOK, "missing.html", nil); err == nil {
		t.Fatal("expected error")
	}
	if rw.Committed() {
		t.Error("guard consumed by a failed render")
	}
}
