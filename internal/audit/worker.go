package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"emblem/internal/platform/kafka/producer"
)

// MessageProducer is the slice of the Kafka producer the worker needs.
// Both producer.Producer and producer.NoopProducer satisfy it.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and publishes pending records to Kafka.
type Worker struct {
	store        Store
	producer     MessageProducer
	topic        string
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption configures the Worker.
type WorkerOption func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) WorkerOption {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of records fetched per poll.
func WithBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// NewWorker creates an outbox worker. Call Start to begin polling.
func NewWorker(store Store, prod MessageProducer, logger *slog.Logger, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        "emblem.audit.events",
		batchSize:    100,
		pollInterval: 250 * time.Millisecond,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll(w.ctx)
		}
	}
}

// poll fetches a batch and publishes each record. A record that fails to
// publish stays pending and is retried on the next poll; consumers must
// de-duplicate on the record ID.
func (w *Worker) poll(ctx context.Context) {
	records, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch outbox records", "error", err)
		return
	}

	for _, record := range records {
		if err := w.publish(ctx, record); err != nil {
			w.logger.Error("failed to publish outbox record",
				"id", record.ID,
				"event_type", record.EventType,
				"error", err,
			)
			continue
		}
		if err := w.store.MarkProcessed(ctx, record.ID, time.Now()); err != nil {
			w.logger.Error("failed to mark outbox record processed",
				"id", record.ID,
				"error", err,
			)
		}
	}
}

func (w *Worker) publish(ctx context.Context, record *Record) error {
	return w.producer.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(record.ID.String()),
		Value: record.Payload,
		Headers: map[string]string{
			"aggregate_type": record.AggregateType,
			"aggregate_id":   record.AggregateID,
			"event_type":     record.EventType,
		},
	})
}

// drain publishes whatever is still pending during shutdown, bounded by a
// short timeout so Stop cannot hang on a dead broker.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	w.poll(ctx)
}

// Stop cancels the polling loop and waits for it to finish draining.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
