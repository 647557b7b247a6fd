package pipeline

import (
	"reflect"

	"gorm.io/gorm"

	"github.com/saaskit/scaffold/internal/infrastructure/persistence/models"
	"github.com/saaskit/scaffold/internal/infrastructure/session"
)

// AuditCallback provides GORM callback hooks for automatic audit stamping
type AuditCallback struct{}

// NewAuditCallback creates a new audit callback handler
func NewAuditCallback() *AuditCallback {
	return &AuditCallback{}
}

// Register registers audit callbacks with GORM
func (ac *AuditCallback) Register(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("scaffold:audit_create", ac.beforeCreate); err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:update").Register("scaffold:audit_update", ac.beforeUpdate)
}

// beforeCreate stamps creation audit fields on every pending insert.
// The stamp is first-wins, so records already carrying a creation time
// are untouched and repeated invocation stays idempotent.
func (ac *AuditCallback) beforeCreate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	if !models.CapabilitiesOf(db.Statement.Schema.ModelType).CreationAudit {
		return
	}

	now := db.NowFunc()
	actor := session.ActorID(db.Statement.Context)

	eachRecord(db.Statement.ReflectValue, func(rec any) {
		if m, ok := rec.(models.CreationAudited); ok {
			m.StampCreated(now, actor)
		}
	})
}

// beforeUpdate stamps modification audit fields on every pending update.
// The modifier id is only written when an actor is ambient.
func (ac *AuditCallback) beforeUpdate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	if !models.CapabilitiesOf(db.Statement.Schema.ModelType).ModificationAudit {
		return
	}

	now := db.NowFunc()
	actor := session.ActorID(db.Statement.Context)

	eachRecord(db.Statement.ReflectValue, func(rec any) {
		if m, ok := rec.(models.ModificationAudited); ok {
			m.StampModified(now, actor)
		}
	})

	// map-based updates build SET from the destination map, not the model
	if _, ok := db.Statement.Dest.(map[string]interface{}); ok {
		db.Statement.SetColumn("updated_at", now, true)
		if actor != nil {
			db.Statement.SetColumn("updated_by", *actor, true)
		}
	}
}

// eachRecord applies fn to every addressable record in the statement's
// reflect value, handling both single-record and batch statements.
func eachRecord(rv reflect.Value, fn func(any)) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			switch {
			case elem.Kind() == reflect.Pointer:
				if !elem.IsNil() {
					fn(elem.Interface())
				}
			case elem.CanAddr():
				fn(elem.Addr().Interface())
			}
		}
	case reflect.Struct:
		if rv.CanAddr() {
			fn(rv.Addr().Interface())
		}
	case reflect.Pointer:
		if !rv.IsNil() {
			eachRecord(rv.Elem(), fn)
		}
	}
}
