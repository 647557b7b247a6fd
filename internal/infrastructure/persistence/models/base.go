package models

import (
	"github.com/google/uuid"
)

// BaseModel provides the identity key shared by all persisted models.
// The id is generated client-side at construction so identifiers are
// stable before the first write, and never changes afterwards.
type BaseModel struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key"`
}

// NewBaseModel creates a base model with a generated identity key
func NewBaseModel() BaseModel {
	return BaseModel{ID: uuid.New()}
}

// GetID returns the identity key
func (m *BaseModel) GetID() uuid.UUID {
	return m.ID
}

// AuditedModel extends BaseModel with creation and modification audit.
type AuditedModel struct {
	BaseModel
	CreationAudit
	ModificationAudit
}

// NewAuditedModel creates an audited model with a generated identity key
func NewAuditedModel() AuditedModel {
	return AuditedModel{BaseModel: NewBaseModel()}
}

// FullAuditedModel extends AuditedModel with soft deletion.
type FullAuditedModel struct {
	AuditedModel
	SoftDelete
}

// NewFullAuditedModel creates a full audited model with a generated identity key
func NewFullAuditedModel() FullAuditedModel {
	return FullAuditedModel{AuditedModel: NewAuditedModel()}
}

// AggregateModel extends BaseModel with a concurrency stamp for
// optimistic locking.
type AggregateModel struct {
	BaseModel
	ConcurrencyToken
}

// NewAggregateModel creates an aggregate model with a generated identity
// key and a fresh concurrency stamp
func NewAggregateModel() AggregateModel {
	return AggregateModel{
		BaseModel:        NewBaseModel(),
		ConcurrencyToken: ConcurrencyToken{ConcurrencyStamp: NewConcurrencyStamp()},
	}
}

// TenantAggregateModel is the common base for tenant-scoped aggregate
// roots: identity, full audit, soft deletion, optimistic concurrency and
// tenant ownership.
type TenantAggregateModel struct {
	FullAuditedModel
	ConcurrencyToken
	TenantOwned
}

// NewTenantAggregateModel creates a tenant aggregate model with a
// generated identity key and a fresh concurrency stamp. The tenant id is
// left nil; the pipeline assigns the ambient tenant on first save.
func NewTenantAggregateModel() TenantAggregateModel {
	return TenantAggregateModel{
		FullAuditedModel: NewFullAuditedModel(),
		ConcurrencyToken: ConcurrencyToken{ConcurrencyStamp: NewConcurrencyStamp()},
	}
}
