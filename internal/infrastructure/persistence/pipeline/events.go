package pipeline

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saaskit/scaffold/internal/domain/shared"
	"github.com/saaskit/scaffold/internal/infrastructure/persistence/models"
)

// EntityChangedEvent is published after a record is created, updated or
// deleted. The event type is the record type name suffixed with the action,
// for example "InvoiceCreated".
type EntityChangedEvent struct {
	shared.BaseDomainEvent
}

// EntityEventCallback publishes entity change events after successful
// writes. Records must expose a UUID identity to produce events; other
// destinations, such as map updates, are skipped.
type EntityEventCallback struct {
	publisher shared.EventPublisher
}

// NewEntityEventCallback creates the callback bound to a publisher.
func NewEntityEventCallback(publisher shared.EventPublisher) *EntityEventCallback {
	return &EntityEventCallback{publisher: publisher}
}

// Register installs the after-write hooks on the given DB.
func (c *EntityEventCallback) Register(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("scaffold:events_create", c.afterCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("scaffold:events_update", c.afterUpdate); err != nil {
		return err
	}
	return db.Callback().Delete().After("gorm:delete").Register("scaffold:events_delete", c.afterDelete)
}

func (c *EntityEventCallback) afterCreate(db *gorm.DB) { c.publish(db, "Created") }
func (c *EntityEventCallback) afterUpdate(db *gorm.DB) { c.publish(db, "Updated") }
func (c *EntityEventCallback) afterDelete(db *gorm.DB) { c.publish(db, "Deleted") }

func (c *EntityEventCallback) publish(db *gorm.DB, action string) {
	if c.publisher == nil || db.Error != nil || db.Statement.Schema == nil {
		return
	}
	if db.RowsAffected == 0 {
		return
	}

	entityType := db.Statement.Schema.ModelType.Name()
	eventType := entityType + action

	var events []shared.DomainEvent
	eachRecord(db.Statement.ReflectValue, func(rec any) {
		keyed, ok := rec.(interface{ GetID() uuid.UUID })
		if !ok || keyed.GetID() == uuid.Nil {
			return
		}
		var tenantID *uuid.UUID
		if owned, ok := rec.(models.MultiTenant); ok {
			tenantID = owned.GetTenantID()
		}
		events = append(events, &EntityChangedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(eventType, entityType, keyed.GetID(), tenantID),
		})
	})

	if len(events) > 0 {
		_ = c.publisher.Publish(db.Statement.Context, events...)
	}
}
