package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the outbox persistence operations. Implementations must be
// safe for concurrent use and return pkg/platform/sentinel errors for
// missing rows.
type Store interface {
	// Append adds a new record to the outbox.
	Append(ctx context.Context, record *Record) error

	// FetchUnprocessed returns up to limit pending records, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Record, error)

	// MarkProcessed stamps a record as published.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountPending returns the number of unprocessed records.
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes old published records and reports how
	// many were deleted.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
