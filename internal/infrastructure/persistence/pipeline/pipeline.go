// Package pipeline wires the cross-cutting persistence concerns into a
// GORM DB: audit stamping, ambient-tenant stamping and filtering. The
// callbacks are registered once at model-construction time and dispatch
// on the facet capabilities of the statement's model type, so record
// types opt in by embedding facets rather than by per-entity code.
//
// Soft-delete conversion and filtering are carried by the models
// package's DeletedFlag column type and need no registration here.
package pipeline

import (
	"gorm.io/gorm"

	"github.com/saaskit/scaffold/internal/domain/shared"
)

// Register installs all pipeline callbacks on the given DB.
// Call once, right after opening the connection. A nil publisher disables
// entity change events.
func Register(db *gorm.DB, publisher shared.EventPublisher) error {
	if err := NewAuditCallback().Register(db); err != nil {
		return err
	}
	if err := NewTenantCallback("").Register(db); err != nil {
		return err
	}
	if publisher != nil {
		return NewEntityEventCallback(publisher).Register(db)
	}
	return nil
}
