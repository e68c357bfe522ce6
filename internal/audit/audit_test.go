package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emblem/internal/platform/kafka/producer"
	"emblem/pkg/platform/sentinel"
	"emblem/pkg/requestcontext"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("builds record with serialized payload", func(t *testing.T) {
		record, err := NewRecord(Event{
			AggregateType: AggregateMintRecord,
			AggregateID:   "3f0c",
			EventType:     "mint.completed",
			Payload:       map[string]any{"token_id": "42"},
		}, now)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, AggregateMintRecord, record.AggregateType)
		assert.JSONEq(t, `{"token_id":"42"}`, string(record.Payload))
		assert.Equal(t, now, record.CreatedAt)
		assert.True(t, record.IsPending())
	})

	t.Run("nil payload becomes empty object", func(t *testing.T) {
		record, err := NewRecord(Event{
			AggregateType: AggregateWallet,
			AggregateID:   "0xabc",
			EventType:     "wallet.linked",
		}, now)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(record.Payload))
	})

	t.Run("rejects missing event type", func(t *testing.T) {
		_, err := NewRecord(Event{AggregateType: AggregateWallet}, now)
		require.Error(t, err)
	})
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	appendEvent := func(t *testing.T, s *InMemoryStore, eventType string, at time.Time) uuid.UUID {
		t.Helper()
		record, err := NewRecord(Event{
			AggregateType: AggregateVerificationSession,
			AggregateID:   "s-1",
			EventType:     eventType,
		}, at)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, record))
		return record.ID
	}

	t.Run("fetch returns pending oldest first", func(t *testing.T) {
		s := NewInMemoryStore()
		first := appendEvent(t, s, "verification.completed", now)
		second := appendEvent(t, s, "verification.failed", now.Add(time.Second))

		records, err := s.FetchUnprocessed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, first, records[0].ID)
		assert.Equal(t, second, records[1].ID)

		records, err = s.FetchUnprocessed(ctx, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, first, records[0].ID)
	})

	t.Run("mark processed removes from pending", func(t *testing.T) {
		s := NewInMemoryStore()
		id := appendEvent(t, s, "verification.completed", now)

		require.NoError(t, s.MarkProcessed(ctx, id, now.Add(time.Minute)))

		records, err := s.FetchUnprocessed(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, records)

		count, err := s.CountPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		// A second mark is a no-op failure, not a silent success.
		err = s.MarkProcessed(ctx, id, now.Add(2*time.Minute))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("mark processed on unknown id", func(t *testing.T) {
		s := NewInMemoryStore()
		err := s.MarkProcessed(ctx, uuid.New(), now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("delete processed before keeps pending and recent", func(t *testing.T) {
		s := NewInMemoryStore()
		old := appendEvent(t, s, "verification.completed", now)
		recent := appendEvent(t, s, "verification.failed", now)
		appendEvent(t, s, "verification.expired", now)

		require.NoError(t, s.MarkProcessed(ctx, old, now.Add(time.Minute)))
		require.NoError(t, s.MarkProcessed(ctx, recent, now.Add(time.Hour)))

		deleted, err := s.DeleteProcessedBefore(ctx, now.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		count, err := s.CountPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestPublisherEmit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	store := NewInMemoryStore()
	pub := NewPublisher(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := pub.Emit(ctx, Event{
		AggregateType: AggregateMintRecord,
		AggregateID:   "m-1",
		EventType:     "mint.revoked",
		Payload:       map[string]any{"reason": "policy violation"},
	})
	require.NoError(t, err)

	records, err := store.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mint.revoked", records[0].EventType)
	assert.Equal(t, now, records[0].CreatedAt)
}

type fakeProducer struct {
	messages []*producer.Message
	fail     bool
}

func (f *fakeProducer) Produce(_ context.Context, msg *producer.Message) error {
	if f.fail {
		return errors.New("broker unreachable")
	}
	f.messages = append(f.messages, msg)
	return nil
}

func TestWorkerPoll(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	emit := func(t *testing.T, store *InMemoryStore, eventType string) {
		t.Helper()
		pub := NewPublisher(store, logger)
		require.NoError(t, pub.Emit(requestcontext.WithTime(ctx, now), Event{
			AggregateType: AggregateVerificationSession,
			AggregateID:   "s-1",
			EventType:     eventType,
		}))
	}

	t.Run("publishes pending records with headers", func(t *testing.T) {
		store := NewInMemoryStore()
		emit(t, store, "verification.completed")
		emit(t, store, "verification.failed")

		prod := &fakeProducer{}
		w := NewWorker(store, prod, logger, WithTopic("emblem.test.events"))
		w.poll(ctx)

		require.Len(t, prod.messages, 2)
		assert.Equal(t, "emblem.test.events", prod.messages[0].Topic)
		assert.Equal(t, "verification.completed", prod.messages[0].Headers["event_type"])
		assert.Equal(t, AggregateVerificationSession, prod.messages[0].Headers["aggregate_type"])

		count, err := store.CountPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("failed publish stays pending for retry", func(t *testing.T) {
		store := NewInMemoryStore()
		emit(t, store, "verification.completed")

		prod := &fakeProducer{fail: true}
		w := NewWorker(store, prod, logger)
		w.poll(ctx)

		count, err := store.CountPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		prod.fail = false
		w.poll(ctx)

		count, err = store.CountPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("stop drains remaining records", func(t *testing.T) {
		store := NewInMemoryStore()
		emit(t, store, "verification.expired")

		prod := &fakeProducer{}
		w := NewWorker(store, prod, logger, WithPollInterval(time.Hour))
		w.Start()

		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, w.Stop(stopCtx))

		assert.Len(t, prod.messages, 1)
	})
}
