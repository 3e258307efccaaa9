package config

import (
	"context"
	"strings"

	"github.com/rosterpilot/roster_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamGuardPlugin enforces per-team isolation by automatically scoping
// queries/updates/deletes to the request's team_id when the model has a team_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include team_id manually.
// - Background workers bypass the guard explicitly via a context flag.
type TeamGuardPlugin struct{}

func NewTeamGuardPlugin() *TeamGuardPlugin { return &TeamGuardPlugin{} }

func (p *TeamGuardPlugin) Name() string { return "team_guard" }

func (p *TeamGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("team_guard:query", teamGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("team_guard:row", teamGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("team_guard:update", teamGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("team_guard:delete", teamGuardCallback); err != nil {
		return err
	}
	return nil
}

func teamGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTeamScope(ctx) {
		return
	}
	teamID := teamIdFromContext(ctx)
	if teamID == 0 {
		return
	}

	// Only apply if the current model/table includes a team_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasTeamID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "team_id") {
			hasTeamID = true
			break
		}
	}
	if !hasTeamID {
		return
	}

	// Don't duplicate an explicit team filter.
	if whereHasTeamID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "team_id"},
				Value:  teamID,
			},
		},
	})
}

func teamIdFromContext(ctx context.Context) int {
	if v, ok := appctx.GetInt(ctx, appctx.ContextKeyTeamId); ok && v > 0 {
		return v
	}
	return 0
}

func shouldBypassTeamScope(ctx context.Context) bool {
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipTeamScope); ok && v {
		return true
	}
	return false
}

func whereHasTeamID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasTeamID(e) {
			return true
		}
	}
	return false
}

func exprHasTeamID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsTeamID(v.Column)
	case clause.Neq:
		return colIsTeamID(v.Column)
	case clause.Gt:
		return colIsTeamID(v.Column)
	case clause.Gte:
		return colIsTeamID(v.Column)
	case clause.Lt:
		return colIsTeamID(v.Column)
	case clause.Lte:
		return colIsTeamID(v.Column)
	case clause.IN:
		return colIsTeamID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasTeamID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasTeamID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "team_id")
	default:
		return false
	}
}

func colIsTeamID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "team_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "team_id")
	default:
		return false
	}
}
