package rbac

import (
	"context"
	"log/slog"

	"github.com/plantdesk/plantdesk/internal/access"
)

// Loader resolves the principal record for an authenticated user id.
type Loader interface {
	Principal(ctx context.Context, id int64) (access.Principal, error)
}

// DecisionRecorder observes every gate outcome.
type DecisionRecorder interface {
	RecordDecision(module, action string, allowed bool)
}

// Target names the (module, feature, action) triple an operation needs.
type Target struct {
	Module  string
	Feature string
	Action  access.Action
}

// Scope is handed to an allowed operation. Unless AllUnits is set, every read
// and write the operation performs must stay inside Unit.
type Scope struct {
	Target
	PrincipalID int64
	Unit        string
	AllUnits    bool
}

// Permits reports whether a resource owned by unit is inside the scope.
func (s Scope) Permits(unit string) bool {
	if s.AllUnits {
		return true
	}
	return s.Unit != "" && unit == s.Unit
}

// Check returns a denial when unit is outside the scope.
func (s Scope) Check(unit string) error {
	if s.Permits(unit) {
		return nil
	}
	return &access.DeniedError{
		Module:  s.Module,
		Feature: s.Feature,
		Action:  string(s.Action),
		Reason:  access.ReasonUnitMismatch,
	}
}

// UnitFilter returns the unit every query must be constrained to. ok is false
// when the principal may see all units.
func (s Scope) UnitFilter() (unit string, ok bool) {
	if s.AllUnits {
		return "", false
	}
	return s.Unit, true
}

// AssignUnit returns the unit a newly created resource belongs to: the
// requested unit for all-unit principals, the principal's own unit otherwise.
func (s Scope) AssignUnit(requested string) string {
	if s.AllUnits && requested != "" {
		return requested
	}
	return s.Unit
}

// Gate is the server-side authorization point. It is the only component that
// turns a negative evaluation into a caller-visible failure.
type Gate struct {
	Loader  Loader
	Logger  *slog.Logger
	Metrics DecisionRecorder
}

// Authorize decides whether p may perform t. Denials are returned as
// *access.DeniedError and are never transient.
func (g Gate) Authorize(p access.Principal, t Target) (Scope, error) {
	eval := p.Evaluator()
	decision := eval.Decide(t.Module, t.Feature, t.Action)
	if g.Metrics != nil {
		g.Metrics.RecordDecision(t.Module, string(t.Action), decision.Allowed)
	}
	if !decision.Allowed {
		if g.Logger != nil {
			g.Logger.Warn("rbac denied",
				slog.Int64("principal_id", p.ID),
				slog.String("module", t.Module),
				slog.String("feature", t.Feature),
				slog.String("action", string(t.Action)),
				slog.String("reason", string(decision.Reason)),
			)
		}
		return Scope{}, &access.DeniedError{
			Module:  t.Module,
			Feature: t.Feature,
			Action:  string(t.Action),
			Reason:  decision.Reason,
		}
	}
	return Scope{
		Target:      t,
		PrincipalID: p.ID,
		Unit:        p.Unit,
		AllUnits:    eval.CanAccessAllUnits(),
	}, nil
}

// Guard authorizes t for p and runs op with the resulting scope. op is not
// called when authorization fails.
func (g Gate) Guard(ctx context.Context, p access.Principal, t Target, op func(context.Context, Scope) error) error {
	scope, err := g.Authorize(p, t)
	if err != nil {
		return err
	}
	ctx = ContextWithPrincipal(ctx, p)
	ctx = ContextWithScope(ctx, scope)
	return op(ctx, scope)
}
