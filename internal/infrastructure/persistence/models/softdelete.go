package models

import (
	"database/sql"
	"database/sql/driver"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/saaskit/scaffold/internal/infrastructure/session"
)

// DeletedFlag is the column type behind the soft-delete facet. It hooks
// GORM's statement building the same way gorm.DeletedAt does: queries and
// updates against the model gain a standing "not deleted" predicate, and
// deletes are rewritten into flag-flip updates. Both behaviors consult
// the session's bypass gate at statement-build time, so a hard delete
// running inside a disabled scope sees flagged rows and removes them
// physically.
type DeletedFlag bool

// Scan implements sql.Scanner. Drivers hand the flag back as int64 or
// bool depending on the dialect, so scanning goes through sql.NullBool.
func (d *DeletedFlag) Scan(value interface{}) error {
	var b sql.NullBool
	if err := b.Scan(value); err != nil {
		return err
	}
	*d = DeletedFlag(b.Bool)
	return nil
}

// Value implements driver.Valuer
func (d DeletedFlag) Value() (driver.Value, error) {
	return bool(d), nil
}

// QueryClauses implements schema.QueryClausesInterface
func (DeletedFlag) QueryClauses(f *schema.Field) []clause.Interface {
	return []clause.Interface{SoftDeleteQueryClause{Field: f}}
}

// UpdateClauses implements schema.UpdateClausesInterface
func (DeletedFlag) UpdateClauses(f *schema.Field) []clause.Interface {
	return []clause.Interface{SoftDeleteUpdateClause{Field: f}}
}

// DeleteClauses implements schema.DeleteClausesInterface
func (DeletedFlag) DeleteClauses(f *schema.Field) []clause.Interface {
	return []clause.Interface{SoftDeleteDeleteClause{Field: f}}
}

// SoftDeleteQueryClause attaches the standing "not deleted" predicate to
// every query against the model, unless the statement is unscoped or the
// session's bypass gate is open.
type SoftDeleteQueryClause struct {
	Field *schema.Field
}

// Name implements clause.Interface
func (SoftDeleteQueryClause) Name() string { return "" }

// Build implements clause.Interface
func (SoftDeleteQueryClause) Build(clause.Builder) {}

// MergeClause implements clause.Interface
func (SoftDeleteQueryClause) MergeClause(*clause.Clause) {}

// ModifyStatement implements clause.StatementModifier. It runs at every
// statement build, so the gate is consulted per execution rather than
// captured once at registration.
func (sd SoftDeleteQueryClause) ModifyStatement(stmt *gorm.Statement) {
	if _, ok := stmt.Clauses["soft_delete_enabled"]; ok || stmt.Unscoped {
		return
	}
	if !session.SoftDeleteFilterEnabled(stmt.Context) {
		return
	}

	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 1 {
			for _, expr := range where.Exprs {
				if orCond, ok := expr.(clause.OrConditions); ok && len(orCond.Exprs) == 1 {
					where.Exprs = []clause.Expression{clause.And(where.Exprs...)}
					c.Expression = where
					stmt.Clauses["WHERE"] = c
					break
				}
			}
		}
	}

	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: sd.Field.DBName}, Value: false},
	}})
	stmt.Clauses["soft_delete_enabled"] = clause.Clause{}
}

// SoftDeleteUpdateClause applies the same standing predicate to updates,
// so flagged rows cannot be modified through the standard path.
type SoftDeleteUpdateClause struct {
	Field *schema.Field
}

// Name implements clause.Interface
func (SoftDeleteUpdateClause) Name() string { return "" }

// Build implements clause.Interface
func (SoftDeleteUpdateClause) Build(clause.Builder) {}

// MergeClause implements clause.Interface
func (SoftDeleteUpdateClause) MergeClause(*clause.Clause) {}

// ModifyStatement implements clause.StatementModifier
func (sd SoftDeleteUpdateClause) ModifyStatement(stmt *gorm.Statement) {
	if stmt.SQL.Len() == 0 {
		SoftDeleteQueryClause(sd).ModifyStatement(stmt)
	}
}

// SoftDeleteDeleteClause converts a physical DELETE into an UPDATE that
// flips the deleted flag, stamping modification audit columns when the
// model carries them. With the bypass gate open the delete is left
// physical, which is how hard delete removes already-flagged rows.
type SoftDeleteDeleteClause struct {
	Field *schema.Field
}

// Name implements clause.Interface
func (SoftDeleteDeleteClause) Name() string { return "" }

// Build implements clause.Interface
func (SoftDeleteDeleteClause) Build(clause.Builder) {}

// MergeClause implements clause.Interface
func (SoftDeleteDeleteClause) MergeClause(*clause.Clause) {}

// ModifyStatement implements clause.StatementModifier
func (sd SoftDeleteDeleteClause) ModifyStatement(stmt *gorm.Statement) {
	if stmt.SQL.Len() != 0 || stmt.Unscoped {
		return
	}
	if !session.SoftDeleteFilterEnabled(stmt.Context) {
		return
	}

	set := clause.Set{{Column: clause.Column{Name: sd.Field.DBName}, Value: true}}
	stmt.SetColumn(sd.Field.DBName, true, true)

	if stmt.Schema != nil {
		// converted deletes count as modifications for audit purposes
		now := stmt.DB.NowFunc()
		if f := stmt.Schema.LookUpField("UpdatedAt"); f != nil {
			set = append(set, clause.Assignment{Column: clause.Column{Name: f.DBName}, Value: now})
			stmt.SetColumn(f.DBName, now, true)
		}
		if actor := session.ActorID(stmt.Context); actor != nil {
			if f := stmt.Schema.LookUpField("UpdatedBy"); f != nil {
				set = append(set, clause.Assignment{Column: clause.Column{Name: f.DBName}, Value: *actor})
				stmt.SetColumn(f.DBName, *actor, true)
			}
		}
	}
	stmt.AddClause(set)

	if stmt.Schema != nil {
		_, queryValues := schema.GetIdentityFieldValuesMap(stmt.Context, stmt.ReflectValue, stmt.Schema.PrimaryFields)
		column, values := schema.ToQueryValues(stmt.Table, stmt.Schema.PrimaryFieldDBNames, queryValues)

		if len(values) > 0 {
			stmt.AddClause(clause.Where{Exprs: []clause.Expression{clause.IN{Column: column, Values: values}}})
		}

		if stmt.ReflectValue.CanAddr() && stmt.Dest != stmt.Model && stmt.Model != nil {
			_, queryValues = schema.GetIdentityFieldValuesMap(stmt.Context, reflect.ValueOf(stmt.Model), stmt.Schema.PrimaryFields)
			column, values = schema.ToQueryValues(stmt.Table, stmt.Schema.PrimaryFieldDBNames, queryValues)

			if len(values) > 0 {
				stmt.AddClause(clause.Where{Exprs: []clause.Expression{clause.IN{Column: column, Values: values}}})
			}
		}
	}

	SoftDeleteQueryClause(sd).ModifyStatement(stmt)
	stmt.AddClauseIfNotExists(clause.Update{})
	stmt.Build(stmt.DB.Callback().Update().Clauses...)
}
