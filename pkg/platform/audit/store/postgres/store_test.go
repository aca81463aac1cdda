package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "taxcase/pkg/domain"
	audit "taxcase/pkg/platform/audit"
)

func TestDecodePayload(t *testing.T) {
	userID := id.UserID(uuid.New())
	ts := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	t.Run("round trips the outbox json", func(t *testing.T) {
		raw := []byte(`{"id":"x","category":"compliance","timestamp":"` + ts.Format(time.RFC3339Nano) +
			`","user_id":"` + userID.String() + `","subject":"rev-1","action":"revision_approved","decision":"approved"}`)
		event, err := decodePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, audit.CategoryCompliance, event.Category)
		assert.Equal(t, userID, event.UserID)
		assert.Equal(t, "revision_approved", event.Action)
		assert.Equal(t, "approved", event.Decision)
		assert.True(t, ts.Equal(event.Timestamp))
	})

	t.Run("rejects malformed timestamp", func(t *testing.T) {
		_, err := decodePayload([]byte(`{"timestamp":"yesterday"}`))
		require.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := decodePayload([]byte(`{`))
		require.Error(t, err)
	})
}
