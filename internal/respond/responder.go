// Package respond provides the guarded response surface handed to
// pipeline steps.
//
// Every response-producing operation (Send, Text, JSON, Redirect, File,
// Render) transitions an internal guard from idle to pending
// synchronously, before any body bytes are written, so the fact that a
// response is happening is observable the instant the call is made —
// even from another goroutine, and even before the write completes. A
// second response-producing call while one is pending or sent fails
// with *InProgressError instead of corrupting the transport. Header and
// cookie mutation is not guarded.
package respond

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
)

// Guard states. Pending is set at call initiation and never reset
// mid-request; only the transport's own completion advances it to sent.
const (
	stateIdle = iota
	statePending
	stateSent
)

// Responder wraps an http.ResponseWriter with the response-completion
// guard. One Responder serves exactly one request.
type Responder struct {
	w        http.ResponseWriter
	r        *http.Request
	renderer Renderer

	mu     sync.Mutex
	state  int
	op     string
	status int
}

// Option configures a Responder.
type Option func(*Responder)

// WithRenderer sets the template renderer used by Render.
func WithRenderer(renderer Renderer) Option {
	return func(rw *Responder) {
		rw.renderer = renderer
	}
}

// New wraps w for one request.
func New(w http.ResponseWriter, r *http.Request, opts ...Option) *Responder {
	rw := &Responder{w: w, r: r}
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// begin transitions the guard to pending, recording which operation won.
// It fails when another response-producing call already did.
func (rw *Responder) begin(op string, status int) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.state != stateIdle {
		return &InProgressError{Attempted: op, Active: rw.op}
	}
	rw.state = statePending
	rw.op = op
	rw.status = status
	return nil
}

func (rw *Responder) markSent() {
	rw.mu.Lock()
	rw.state = stateSent
	rw.mu.Unlock()
}

// Committed reports whether a response-producing operation has been
// initiated (pending or sent). This is the executor's halt checkpoint.
func (rw *Responder) Committed() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.state != stateIdle
}

// Sent reports whether the winning operation has finished writing.
func (rw *Responder) Sent() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.state == stateSent
}

// Status returns the status code of the winning operation, or 0 when no
// response has been initiated.
func (rw *Responder) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.status
}

// Header returns the response header map. Header mutation is not
// guarded and may happen at any pipeline stage.
func (rw *Responder) Header() http.Header {
	return rw.w.Header()
}

// SetCookie adds a Set-Cookie header. Not guarded.
func (rw *Responder) SetCookie(c *http.Cookie) {
	http.SetCookie(rw.w, c)
}

// Send writes body with the given status and content type.
func (rw *Responder) Send(status int, contentType string, body []byte) error {
	if err := rw.begin("send", status); err != nil {
		return err
	}
	defer rw.markSent()
	if contentType != "" {
		rw.w.Header().Set("Content-Type", contentType)
	}
	rw.w.WriteHeader(status)
	if _, err := rw.w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Text writes a plain-text body.
func (rw *Responder) Text(status int, body string) error {
	return rw.Send(status, "text/plain; charset=utf-8", []byte(body))
}

// JSON encodes v and writes it as an application/json body. Encoding
// happens before the guard transition, so an unencodable value surfaces
// as a step failure without consuming the response.
func (rw *Responder) JSON(status int, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if err := rw.begin("json", status); err != nil {
		return err
	}
	defer rw.markSent()
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)
	if _, err := rw.w.Write(buf); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Redirect sends a redirect to url. The status must be in the 3xx range.
func (rw *Responder) Redirect(status int, url string) error {
	if status < http.StatusMultipleChoices || status > http.StatusPermanentRedirect {
		return fmt.Errorf("redirect status %d outside 3xx range", status)
	}
	if err := rw.begin("redirect", status); err != nil {
		return err
	}
	defer rw.markSent()
	http.Redirect(rw.w, rw.r, url, status)
	return nil
}

// File streams the file at path as the response body. The file is
// opened and stat'd before the guard transition, so a missing file
// surfaces as a step failure without consuming the response.
func (rw *Responder) File(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	if err := rw.begin("file", http.StatusOK); err != nil {
		return err
	}
	defer rw.markSent()
	http.ServeContent(rw.w, rw.r, fi.Name(), fi.ModTime(), f)
	return nil
}

// Render executes the named template with data and writes it as an HTML
// body. The template is executed into a buffer before the guard
// transition, so a template error surfaces as a step failure without
// consuming the response.
func (rw *Responder) Render(status int, name string, data any) error {
	if rw.renderer == nil {
		return fmt.Errorf("render %s: no template renderer configured", name)
	}
	var buf bytes.Buffer
	if err := rw.renderer.Render(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := rw.begin("render", status); err != nil {
		return err
	}
	defer rw.markSent()
	rw.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.w.WriteHeader(status)
	if _, err := rw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Flush forwards Flush to the underlying ResponseWriter if it supports
// http.Flusher, preserving streaming support.
func (rw *Responder) Flush() {
	if f, ok := rw.w.(http.Flusher); ok {
		f.Flush()
	}
}
