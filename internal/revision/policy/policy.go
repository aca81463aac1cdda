// Package policy decides who may request, decide, and view revisions.
//
// Evaluation order is fixed:
//  1. the principal must be resolved (role and entity loaded)
//  2. administrators are allowed every action, before any entity check
//  3. the action's own predicate runs
//
// The gate is a pure predicate; it never mutates its inputs.
package policy

import (
	"context"
	"log/slog"

	"taxcase/internal/revision/metrics"
	"taxcase/internal/revision/models"
	platformstrings "taxcase/pkg/platform/strings"
)

// DefaultAdminRoles are the role spellings treated as administrators.
var DefaultAdminRoles = []string{"admin", "administrator", "super_admin"}

// Policy evaluates revision actions for a principal.
type Policy struct {
	adminRoles map[string]struct{}
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Policy)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) {
		p.metrics = m
	}
}

// WithAdminRoles replaces the recognized administrator spellings. Blank
// entries are ignored; an empty list keeps the defaults.
func WithAdminRoles(roles ...string) Option {
	return func(p *Policy) {
		normalized := platformstrings.DedupeAndTrimLower(roles)
		set := make(map[string]struct{}, len(normalized))
		for _, r := range normalized {
			set[r] = struct{}{}
		}
		if len(set) > 0 {
			p.adminRoles = set
		}
	}
}

// New constructs a Policy.
func New(opts ...Option) *Policy {
	p := &Policy{}
	WithAdminRoles(DefaultAdminRoles...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAdmin reports whether role is one of the administrator spellings.
func (p *Policy) IsAdmin(role models.Role) bool {
	_, ok := p.adminRoles[role.Normalized()]
	return ok
}

// Authorize reports whether principal may perform action. revision may be nil
// for actions that do not target an existing revision.
//
// It returns models.ErrPrincipalNotResolved for an unresolved principal and
// models.ErrUnknownAction for an action outside the known set.
func (p *Policy) Authorize(ctx context.Context, principal models.Principal, action models.Action, revision *models.Revision) (bool, error) {
	if !principal.IsResolved() {
		return false, models.ErrPrincipalNotResolved
	}
	if !action.IsValid() {
		return false, models.ErrUnknownAction
	}

	allowed, reason := p.evaluate(principal, action)

	if p.logger != nil {
		attrs := []any{
			"principal_id", principal.ID,
			"role", string(principal.Role),
			"action", string(action),
			"allowed", allowed,
			"reason", reason,
		}
		if revision != nil {
			attrs = append(attrs, "revision_id", revision.ID)
		}
		p.logger.DebugContext(ctx, "revision authorization evaluated", attrs...)
	}
	if !allowed {
		p.metrics.IncDenied(string(action))
	}
	return allowed, nil
}

func (p *Policy) evaluate(principal models.Principal, action models.Action) (bool, string) {
	if p.IsAdmin(principal.Role) {
		return true, "admin_bypass"
	}
	switch action {
	case models.ActionRequest, models.ActionView:
		return true, "any_resolved_principal"
	case models.ActionDecide:
		if principal.BelongsToHolding() {
			return true, "holding_entity"
		}
		return false, "entity_not_holding"
	}
	return false, "unknown_action"
}
