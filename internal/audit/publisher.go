package audit

import (
	"context"
	"log/slog"

	"emblem/pkg/requestcontext"
)

// Publisher appends domain events to the outbox. Persistence and the Kafka
// publish are decoupled: Emit only writes the record, the Worker ships it.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	record, err := NewRecord(event, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := p.store.Append(ctx, record); err != nil {
		if p.logger != nil {
			p.logger.Error("failed to append audit record",
				"event_type", event.EventType,
				"aggregate_id", event.AggregateID,
				"error", err,
			)
		}
		return err
	}
	return nil
}
