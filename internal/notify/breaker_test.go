package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxcase/internal/revision/models"
	"taxcase/pkg/platform/circuit"
)

func TestBreakerSinkShortCircuitsAfterFailures(t *testing.T) {
	ctx := context.Background()
	n := testNotification(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := NewRecorder()
	rec.FailWith(errors.New("broker down"))
	breaker := circuit.New("kafka",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	sink := NewBreakerSink(rec, breaker, nil)

	require.Error(t, sink.Publish(ctx, n))
	require.Error(t, sink.Publish(ctx, n))
	assert.True(t, breaker.IsOpen())

	err := sink.Publish(ctx, n)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, rec.Events(), 2, "open circuit must not reach the sink")

	// probe after cooldown succeeds and closes the circuit
	rec.FailWith(nil)
	now = now.Add(time.Minute)
	require.NoError(t, sink.Publish(ctx, n))
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 3, rec.Count(models.NotificationRevisionRequested))
}

// stalledSink blocks until the caller's context ends.
type stalledSink struct{}

func (stalledSink) Publish(ctx context.Context, _ models.Notification) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestBreakerSinkBoundsStalledPublish(t *testing.T) {
	sink := NewBreakerSink(stalledSink{}, circuit.New("kafka"), nil,
		WithPublishTimeout(20*time.Millisecond),
	)

	start := time.Now()
	err := sink.Publish(context.WithoutCancel(context.Background()), testNotification(t))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBreakerSinkDefaultTimeout(t *testing.T) {
	sink := NewBreakerSink(NewRecorder(), circuit.New("kafka"), nil, WithPublishTimeout(0))
	assert.Equal(t, DefaultPublishTimeout, sink.timeout)
}
