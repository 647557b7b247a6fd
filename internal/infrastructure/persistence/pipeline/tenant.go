package pipeline

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saaskit/scaffold/internal/infrastructure/persistence/models"
	"github.com/saaskit/scaffold/internal/infrastructure/session"
)

// TenantCallback provides GORM callback hooks for automatic tenant
// stamping and filtering of models carrying the tenant facet.
type TenantCallback struct {
	tenantColumn string
}

// NewTenantCallback creates a new tenant callback handler
func NewTenantCallback(tenantColumn string) *TenantCallback {
	if tenantColumn == "" {
		tenantColumn = "tenant_id"
	}
	return &TenantCallback{tenantColumn: tenantColumn}
}

// Register registers tenant callbacks with GORM
func (tc *TenantCallback) Register(db *gorm.DB) error {
	// Stamp the ambient tenant onto unassigned records before writes
	if err := db.Callback().Create().Before("gorm:create").Register("scaffold:tenant_stamp_create", tc.stampTenant); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("scaffold:tenant_stamp_update", tc.stampTenant); err != nil {
		return err
	}

	// Filter every read and write path by the ambient tenant
	if err := db.Callback().Query().Before("gorm:query").Register("scaffold:tenant_filter_query", tc.addTenantFilter); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("scaffold:tenant_filter_row", tc.addTenantFilter); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("scaffold:tenant_filter_update", tc.addTenantFilter); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("scaffold:tenant_filter_delete", tc.addTenantFilter)
}

// stampTenant assigns the ambient tenant to pending records whose tenant
// id is still nil. A non-nil tenant id is never overwritten, and nothing
// happens when no ambient tenant is active, which keeps the stamp
// first-wins and idempotent.
func (tc *TenantCallback) stampTenant(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	if !models.CapabilitiesOf(db.Statement.Schema.ModelType).MultiTenant {
		return
	}

	tenantID := session.CurrentTenantID(db.Statement.Context)
	if tenantID == nil {
		return
	}

	eachRecord(db.Statement.ReflectValue, func(rec any) {
		if m, ok := rec.(models.MultiTenant); ok && m.GetTenantID() == nil {
			id := *tenantID
			m.SetTenantID(&id)
		}
	})
}

// addTenantFilter adds the ambient-tenant predicate to the statement.
// It is evaluated at each statement build, so the same compiled query
// respects a changed ambient tenant on every execution.
func (tc *TenantCallback) addTenantFilter(db *gorm.DB) {
	if db.Statement.Unscoped {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	if !models.CapabilitiesOf(db.Statement.Schema.ModelType).MultiTenant {
		return
	}
	if tc.hasTenantCondition(db) {
		return
	}

	tenantID := session.CurrentTenantID(db.Statement.Context)
	if tenantID == nil {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: tc.tenantColumn},
				Value:  *tenantID,
			},
		},
	})
}

// hasTenantCondition checks if a tenant condition is already present
func (tc *TenantCallback) hasTenantCondition(db *gorm.DB) bool {
	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if tc.exprContainsTenant(expr) {
					return true
				}
			}
		}
	}

	// Also check the built SQL if available
	sql := db.Statement.SQL.String()
	return sql != "" && strings.Contains(sql, tc.tenantColumn)
}

// exprContainsTenant checks if an expression contains the tenant column
func (tc *TenantCallback) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.tenantColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.tenantColumn
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsTenant(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}
