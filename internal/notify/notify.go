// Package notify delivers revision lifecycle notifications to downstream sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"taxcase/internal/revision/models"
)

// Sink receives lifecycle notifications. Implementations may fail; callers
// treat delivery as best-effort.
type Sink interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Fanout publishes to every sink and joins their errors. A failing sink does
// not prevent delivery to the others.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each notification as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, n models.Notification) error {
	if s.logger == nil {
		return nil
	}
	snap := n.Snapshot()
	s.logger.InfoContext(ctx, "revision notification",
		"type", n.Type(),
		"revision_id", snap.ID,
		"target", snap.Target.String(),
		"state", snap.State,
	)
	return nil
}

// Recorder keeps every published notification in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.Notification
	err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Publish calls record the event and return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Publish(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
	return r.err
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.events...)
}

// Count returns how many notifications of type t were published.
func (r *Recorder) Count(t models.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type() == t {
			n++
		}
	}
	return n
}
