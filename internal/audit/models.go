package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Aggregate types recorded alongside every event so consumers can route
// without parsing the payload.
const (
	AggregateVerificationSession = "verification_session"
	AggregateMintRecord          = "mint_record"
	AggregateBadgeType           = "badge_type"
	AggregateWallet              = "wallet"
	AggregateBusClient           = "bus_client"
)

// Event is emitted from domain logic to capture a state transition. It is
// transport-agnostic; the outbox worker decides where it ends up.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
}

// Record is a row in the outbox table, following the transactional outbox
// pattern for reliable event publishing.
type Record struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// IsPending reports whether the record has not been published yet.
func (r *Record) IsPending() bool {
	return r.ProcessedAt == nil
}

// NewRecord builds an outbox record from a domain event. The payload is
// serialized once here so stores and the worker only move bytes.
func NewRecord(event Event, createdAt time.Time) (*Record, error) {
	if event.AggregateType == "" || event.EventType == "" {
		return nil, fmt.Errorf("audit event missing aggregate type or event type")
	}
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return &Record{
		ID:            uuid.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       raw,
		CreatedAt:     createdAt,
	}, nil
}

func (r *Record) clone() *Record {
	out := *r
	out.Payload = append([]byte(nil), r.Payload...)
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		out.ProcessedAt = &t
	}
	return &out
}
