// Package journal persists a per-request execution record after the
// response has been sent. The write happens as a background task, so a
// slow or failing store never touches the response path.
package journal

import (
	"context"
	"time"

	"github.com/cascade-http/cascade/internal/pipeline"
)

// Entry is one request's execution record.
type Entry struct {
	ID         string
	RequestID  string
	Method     string
	Path       string
	Status     int
	Outcome    string
	StepNumber int
	Error      string
	Duration   time.Duration
	CreatedAt  time.Time
}

// Store persists journal entries.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Task wraps a Save call as a background task descriptor.
func Task(store Store, entry Entry) pipeline.Task {
	return pipeline.Task{
		Name:   "journal",
		Source: "internal/journal",
		Run: func(ctx context.Context, _ pipeline.Bag) error {
			return store.Save(ctx, entry)
		},
	}
}
