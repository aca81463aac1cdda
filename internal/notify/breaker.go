package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taxcase/internal/revision/models"
	"taxcase/pkg/platform/circuit"
)

// ErrCircuitOpen is returned while the guarded sink is considered down.
var ErrCircuitOpen = errors.New("notification sink circuit open")

// DefaultPublishTimeout bounds a single call to the guarded sink.
const DefaultPublishTimeout = 2 * time.Second

// BreakerSink stops calling a failing sink until the breaker lets a probe
// through. Every call that does reach the sink is cut off after the publish
// timeout, so a stalled broker costs a request at most that long.
type BreakerSink struct {
	next    Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
	timeout time.Duration
}

type BreakerOption func(*BreakerSink)

// WithPublishTimeout overrides DefaultPublishTimeout. Non-positive values are ignored.
func WithPublishTimeout(d time.Duration) BreakerOption {
	return func(s *BreakerSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewBreakerSink(next Sink, breaker *circuit.Breaker, logger *slog.Logger, opts ...BreakerOption) *BreakerSink {
	s := &BreakerSink{next: next, breaker: breaker, logger: logger, timeout: DefaultPublishTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BreakerSink) Publish(ctx context.Context, n models.Notification) error {
	if !s.breaker.Allow() {
		return ErrCircuitOpen
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.next.Publish(callCtx, n); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "notification circuit opened",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "notification circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}
