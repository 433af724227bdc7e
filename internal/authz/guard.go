package authz

import (
	"context"
	"errors"

	"github.com/filehaven/filehaven/internal/observability"
)

// ErrPermissionDenied signals that resolution completed and no rule granted
// access. Callers surface this as a 403.
var ErrPermissionDenied = errors.New("authz: permission denied")

// Guard wraps the Resolver with error-shaped outcomes and metrics, for use by
// the services enforcing access ahead of CRUD operations.
type Guard struct {
	resolver *Resolver
	metrics  *observability.Metrics
}

// NewGuard constructs a Guard. Metrics may be nil.
func NewGuard(resolver *Resolver, metrics *observability.Metrics) *Guard {
	return &Guard{resolver: resolver, metrics: metrics}
}

// Require returns nil when the principal may perform any of the actions on the
// resource, ErrPermissionDenied when resolution denies access, and
// ErrResourceNotFound when the resource does not exist.
func (g *Guard) Require(ctx context.Context, principal Principal, ref ResourceRef, actions ActionSet) error {
	allowed, err := g.resolver.CanAccess(ctx, principal, ref, actions)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			g.observe("not_found")
		}
		return err
	}
	if !allowed {
		g.observe("denied")
		return ErrPermissionDenied
	}
	g.observe("allowed")
	return nil
}

// RequireAction is a convenience wrapper for single-action guards.
func (g *Guard) RequireAction(ctx context.Context, principal Principal, ref ResourceRef, action Action) error {
	return g.Require(ctx, principal, ref, Actions(action))
}

func (g *Guard) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.ObserveAccessCheck(outcome)
	}
}
