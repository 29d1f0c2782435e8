package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain fact published after a state change has been persisted.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the ID of the record the event is about. Sinks use it as
	// the partitioning key so events of one record stay ordered.
	AggregateID() uuid.UUID
	AggregateType() string
}

// BaseEvent carries the envelope fields; embed it in concrete events.
type BaseEvent struct {
	ID            uuid.UUID `json:"eventId"`
	Type          string    `json:"eventType"`
	Timestamp     time.Time `json:"occurredAt"`
	AggregateUUID uuid.UUID `json:"aggregateId"`
	AggregateName string    `json:"aggregateType"`
}

func (e BaseEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) AggregateID() uuid.UUID { return e.AggregateUUID }
func (e BaseEvent) AggregateType() string  { return e.AggregateName }

// NewBaseEvent stamps a new envelope with a fresh ID and the current UTC time.
func NewBaseEvent(eventType string, aggregateID uuid.UUID, aggregateType string) BaseEvent {
	return BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		AggregateUUID: aggregateID,
		AggregateName: aggregateType,
	}
}
