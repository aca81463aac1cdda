package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "taxcase/pkg/domain"
	audit "taxcase/pkg/platform/audit"
	"taxcase/pkg/platform/audit/store/memory"
)

// gatedStore blocks every Append until release is closed.
type gatedStore struct {
	*memory.InMemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		InMemoryStore: memory.NewInMemoryStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (g *gatedStore) Append(ctx context.Context, e audit.Event) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.InMemoryStore.Append(ctx, e)
}

type failingStore struct {
	*memory.InMemoryStore
}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func decisionEvent(userID id.UserID, action audit.AuditEvent) audit.Event {
	return audit.Event{
		UserID:   userID,
		Subject:  uuid.NewString(),
		Action:   string(action),
		Decision: "approved",
	}
}

func TestPublisher_SyncDerivesCategoryAndTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	fixed := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	userID := id.UserID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), decisionEvent(userID, audit.EventRevisionApproved)))

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_KeepsCallerTimestampAndCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	userID := id.UserID(uuid.New())
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e := decisionEvent(userID, audit.EventRevisionRequested)
	e.Timestamp = at
	e.Category = audit.CategorySecurity
	require.NoError(t, pub.Emit(context.Background(), e))

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_SyncPropagatesStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{memory.NewInMemoryStore()})
	err := pub.Emit(context.Background(), decisionEvent(id.UserID(uuid.New()), audit.EventRevisionRejected))
	assert.Error(t, err)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(32))

	userID := id.UserID(uuid.New())
	for _, action := range []audit.AuditEvent{
		audit.EventRevisionRequested,
		audit.EventRevisionApproved,
		audit.EventRevisionRejected,
	} {
		require.NoError(t, pub.Emit(context.Background(), decisionEvent(userID, action)))
	}
	pub.Close()
	pub.Close()

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, string(audit.EventRevisionRequested), events[0].Action)
	assert.Equal(t, string(audit.EventRevisionRejected), events[2].Action)
}

func TestPublisher_AsyncBufferFull(t *testing.T) {
	store := newGatedStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	userID := id.UserID(uuid.New())

	// first event is taken by the drain goroutine and parks in Append
	require.NoError(t, pub.Emit(context.Background(), decisionEvent(userID, audit.EventRevisionRequested)))
	<-store.entered
	// second fills the buffer
	require.NoError(t, pub.Emit(context.Background(), decisionEvent(userID, audit.EventRevisionApproved)))

	err := pub.Emit(context.Background(), decisionEvent(userID, audit.EventRevisionRejected))
	assert.ErrorIs(t, err, ErrBufferFull)

	close(store.release)
	pub.Close()
	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPublisher_AsyncRejectsCancelledContext(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Emit(ctx, decisionEvent(id.UserID(uuid.New()), audit.EventRevisionRequested))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_AsyncSurvivesStoreErrors(t *testing.T) {
	pub := NewPublisher(failingStore{memory.NewInMemoryStore()}, WithAsyncBuffer(4))
	require.NoError(t, pub.Emit(context.Background(), decisionEvent(id.UserID(uuid.New()), audit.EventRevisionApproved)))
	pub.Close()
}

func TestPublisher_EmitAfterCloseIsRejected(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()

	userID := id.UserID(uuid.New())
	err := pub.Emit(context.Background(), decisionEvent(userID, audit.EventRevisionRequested))
	assert.ErrorIs(t, err, audit.ErrPublisherClosed)

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPublisher_EmitRacingClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(8))
	userID := id.UserID(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), decisionEvent(userID, audit.EventRevisionRequested))
			if err != nil && !errors.Is(err, ErrBufferFull) {
				assert.ErrorIs(t, err, audit.ErrPublisherClosed)
			}
		}()
	}
	pub.Close()
	wg.Wait()
}
