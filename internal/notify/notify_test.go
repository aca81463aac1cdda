package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
)

func testNotification(t *testing.T) models.Notification {
	t.Helper()
	r, err := models.NewRevision(id.RevisionID(uuid.New()),
		models.RevisableRef{Kind: models.KindTaxCase, ID: "tc-1"},
		id.UserID(uuid.New()), "", time.Now())
	require.NoError(t, err)
	return models.NewRevisionRequested(r, time.Now())
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	n := testNotification(t)

	t.Run("delivers to every sink despite a failure", func(t *testing.T) {
		failing := NewRecorder()
		failing.FailWith(errors.New("smtp down"))
		healthy := NewRecorder()

		err := Fanout{failing, nil, healthy}.Publish(ctx, n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp down")
		assert.Len(t, failing.Events(), 1)
		assert.Len(t, healthy.Events(), 1)
	})

	t.Run("no sinks", func(t *testing.T) {
		assert.NoError(t, Fanout{}.Publish(ctx, n))
	})
}

func TestRecorderCount(t *testing.T) {
	rec := NewRecorder()
	n := testNotification(t)
	require.NoError(t, rec.Publish(context.Background(), n))
	require.NoError(t, rec.Publish(context.Background(), n))

	assert.Equal(t, 2, rec.Count(models.NotificationRevisionRequested))
	assert.Zero(t, rec.Count(models.NotificationRevisionApproved))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, sink.Publish(context.Background(), testNotification(t)))
	assert.Contains(t, buf.String(), "type=revision_requested")
	assert.Contains(t, buf.String(), "target=tax_case:tc-1")
}
