package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mmdatafocus/shifts_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantColumn = "company_id"

var ErrCrossTenantWrite = errors.New("row belongs to another company")

// TenantGuardPlugin keeps every statement on a company-owned table inside the
// company carried by the request context.
//
// Reads, updates and deletes get a company_id filter unless they already
// have one. Creates have an empty company_id stamped and a foreign one refused.
// Raw SQL is not scoped; it must filter on company_id itself.
// The dispatcher and cmd tools bypass scoping through context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("tenant_guard:create", tenantStampCallback); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantScopeCallback); err != nil {
		return err
	}
	// First/Take through Row()
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantScopeCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantScopeCallback); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantScopeCallback)
}

// CheckTenantTables fails when one of models has no company_id column, so a
// table meant to be company-owned cannot silently escape scoping.
func CheckTenantTables(db *gorm.DB, models ...any) error {
	for _, m := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return err
		}
		if tenantField(stmt.Schema) == nil {
			return fmt.Errorf("table %s has no %s column", stmt.Schema.Table, tenantColumn)
		}
	}
	return nil
}

// tenantCompany returns the company a statement is bound to, or "" when the
// guard does not apply.
func tenantCompany(db *gorm.DB) string {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return ""
	}
	if shouldBypassTenantScope(db.Statement.Context) {
		return ""
	}
	return companyIdFromContext(db.Statement.Context)
}

func tenantField(s *schema.Schema) *schema.Field {
	if s == nil {
		return nil
	}
	return s.LookUpField(tenantColumn)
}

func tenantStampCallback(db *gorm.DB) {
	companyID := tenantCompany(db)
	if companyID == "" {
		return
	}
	field := tenantField(db.Statement.Schema)
	if field == nil {
		return
	}

	ctx := db.Statement.Context
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := stampRow(ctx, field, rv.Index(i), companyID); err != nil {
				_ = db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := stampRow(ctx, field, rv, companyID); err != nil {
			_ = db.AddError(err)
		}
	}
}

func stampRow(ctx context.Context, field *schema.Field, row reflect.Value, companyID string) error {
	if reflect.Indirect(row).Kind() != reflect.Struct {
		return nil
	}
	v, zero := field.ValueOf(ctx, row)
	if zero {
		return field.Set(ctx, row, companyID)
	}
	if s, ok := v.(string); ok && s != companyID {
		return fmt.Errorf("%w: %s", ErrCrossTenantWrite, s)
	}
	return nil
}

func tenantScopeCallback(db *gorm.DB) {
	companyID := tenantCompany(db)
	if companyID == "" {
		return
	}
	if tenantField(db.Statement.Schema) == nil {
		return
	}
	// an explicit filter wins
	if whereHasCompanyID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn},
				Value:  companyID,
			},
		},
	})
}

func companyIdFromContext(ctx context.Context) string {
	v, _ := appctx.GetString(ctx, appctx.ContextKeyCompanyId)
	return v
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); v {
		return true
	}
	v, _ := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin)
	return v
}

func whereHasCompanyID(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasCompanyID(e) {
			return true
		}
	}
	return false
}

func exprHasCompanyID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsCompanyID(v.Column)
	case clause.Neq:
		return colIsCompanyID(v.Column)
	case clause.IN:
		return colIsCompanyID(v.Column)
	case clause.AndConditions:
		return anyHasCompanyID(v.Exprs)
	case clause.OrConditions:
		return anyHasCompanyID(v.Exprs)
	case clause.Expr:
		// Where("company_id = ?", ...) lands here
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	default:
		return false
	}
}

func anyHasCompanyID(exprs []clause.Expression) bool {
	for _, x := range exprs {
		if exprHasCompanyID(x) {
			return true
		}
	}
	return false
}

func colIsCompanyID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	default:
		return false
	}
}
