// Package models provides the building blocks for persisted record types:
// a base model with a client-generated identity key and a set of optional
// facets (creation/modification audit, concurrency stamp, soft delete,
// tenant ownership) a model opts into by embedding.
//
// The persistence pipeline dispatches on the facet interfaces, so any
// model embedding a facet struct automatically participates in the
// corresponding cross-cutting behavior: audit stamping, tenant scoping,
// soft-delete conversion and filtering.
//
// Example:
//
//	type Invoice struct {
//		models.TenantAggregateModel
//		Number string          `gorm:"type:varchar(50);not null"`
//		Total  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
//	}
package models
