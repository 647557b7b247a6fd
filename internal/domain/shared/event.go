package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents a fact that occurred in the domain.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	EntityID() uuid.UUID
	EntityType() string
	TenantID() *uuid.UUID
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Timestamp     time.Time  `json:"timestamp"`
	EntID         uuid.UUID  `json:"entity_id"`
	EntType       string     `json:"entity_type"`
	TenantIDValue *uuid.UUID `json:"tenant_id,omitempty"`
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, entityType string, entityID uuid.UUID, tenantID *uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		EntID:         entityID,
		EntType:       entityType,
		TenantIDValue: tenantID,
	}
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// EntityID returns the ID of the record that produced this event
func (e *BaseDomainEvent) EntityID() uuid.UUID {
	return e.EntID
}

// EntityType returns the record type name
func (e *BaseDomainEvent) EntityType() string {
	return e.EntType
}

// TenantID returns the owning tenant, nil for host-owned records
func (e *BaseDomainEvent) TenantID() *uuid.UUID {
	return e.TenantIDValue
}
