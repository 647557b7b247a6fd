package models

import (
	"time"

	"github.com/google/uuid"
)

// CreationAudited is implemented by models that record who created them
// and when. The pipeline stamps it once, on the first insert.
type CreationAudited interface {
	StampCreated(at time.Time, by *uuid.UUID)
	CreationTime() *time.Time
}

// ModificationAudited is implemented by models that record the last
// modification. The pipeline stamps it on every update.
type ModificationAudited interface {
	StampModified(at time.Time, by *uuid.UUID)
}

// ConcurrencyStamped is implemented by models carrying an opaque token
// used to detect lost updates between two writers.
type ConcurrencyStamped interface {
	GetConcurrencyStamp() string
	SetConcurrencyStamp(stamp string)
}

// SoftDeletable is implemented by models whose deletes are converted into
// a flag flip and filtered out of standard reads.
type SoftDeletable interface {
	Deleted() bool
	MarkDeleted()
}

// MultiTenant is implemented by models owned by a tenant. A nil tenant id
// means "not yet assigned" and is the only state the pipeline overwrites.
type MultiTenant interface {
	GetTenantID() *uuid.UUID
	SetTenantID(id *uuid.UUID)
}

// CreationAudit is the embeddable creation-audit facet. Both fields stay
// nil until the first pipeline-mediated save.
type CreationAudit struct {
	CreatedAt *time.Time `gorm:"index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"`
}

// StampCreated records the creation instant and actor. It is first-wins:
// a record already stamped is left untouched, which keeps repeated
// interceptor runs within one flush idempotent.
func (a *CreationAudit) StampCreated(at time.Time, by *uuid.UUID) {
	if a.CreatedAt != nil {
		return
	}
	t := at
	a.CreatedAt = &t
	a.CreatedBy = by
}

// CreationTime returns the creation timestamp, nil before the first save.
func (a *CreationAudit) CreationTime() *time.Time {
	return a.CreatedAt
}

// ModificationAudit is the embeddable modification-audit facet. GORM's
// implicit update-time tracking is switched off for UpdatedAt so the
// field stays nil until the first interceptor-stamped update.
type ModificationAudit struct {
	UpdatedAt *time.Time `gorm:"index;autoUpdateTime:false"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
}

// StampModified records the modification instant; the modifier is set
// only when an actor id is available, never cleared to nil.
func (a *ModificationAudit) StampModified(at time.Time, by *uuid.UUID) {
	t := at
	a.UpdatedAt = &t
	if by != nil {
		a.UpdatedBy = by
	}
}

// ConcurrencyToken is the embeddable optimistic-concurrency facet.
// The stamp is regenerated only at construction and by a successful
// service-level update, never by the pipeline itself.
type ConcurrencyToken struct {
	ConcurrencyStamp string `gorm:"type:varchar(40);not null"`
}

// GetConcurrencyStamp returns the current stamp.
func (c *ConcurrencyToken) GetConcurrencyStamp() string {
	return c.ConcurrencyStamp
}

// SetConcurrencyStamp replaces the current stamp.
func (c *ConcurrencyToken) SetConcurrencyStamp(stamp string) {
	c.ConcurrencyStamp = stamp
}

// NewConcurrencyStamp generates a fresh opaque stamp.
func NewConcurrencyStamp() string {
	return uuid.NewString()
}

// SoftDelete is the embeddable soft-delete facet. The DeletedFlag field
// type carries the GORM clauses that convert deletes and filter reads.
type SoftDelete struct {
	IsDeleted DeletedFlag `gorm:"not null;default:false"`
}

// Deleted reports whether the record is flagged deleted.
func (d *SoftDelete) Deleted() bool {
	return bool(d.IsDeleted)
}

// MarkDeleted flags the record deleted. The flag only transitions
// false to true here; undeleting is an explicit application concern.
func (d *SoftDelete) MarkDeleted() {
	d.IsDeleted = true
}

// TenantOwned is the embeddable multi-tenant facet.
type TenantOwned struct {
	TenantID *uuid.UUID `gorm:"type:uuid;index"`
}

// GetTenantID returns the owning tenant id, nil when unassigned.
func (t *TenantOwned) GetTenantID() *uuid.UUID {
	return t.TenantID
}

// SetTenantID assigns the owning tenant.
func (t *TenantOwned) SetTenantID(id *uuid.UUID) {
	t.TenantID = id
}
