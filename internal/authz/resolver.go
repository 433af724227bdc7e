package authz

import (
	"context"
	"fmt"
)

// DefaultMaxDepth bounds the ancestor walk when no explicit limit is
// configured. Folder nesting is capped well below this by the folders service,
// so hitting the bound means the parent chain is corrupt.
const DefaultMaxDepth = 64

// Resolver answers access-control checks against the resource hierarchy.
type Resolver struct {
	resources ResourceStore
	grants    GrantStore
	maxDepth  int
}

// NewResolver constructs a Resolver. A non-positive maxDepth falls back to
// DefaultMaxDepth.
func NewResolver(resources ResourceStore, grants GrantStore, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{resources: resources, grants: grants, maxDepth: maxDepth}
}

// CanAccess reports whether the principal may perform any of the acceptable
// actions on the referenced resource.
//
// Precedence, first match wins at each level of the ancestor walk:
//
//  1. missing resource        -> ErrResourceNotFound
//  2. ownership               -> allowed, regardless of requested actions
//  3. admin with superadmin   -> allowed
//  4. admin without superadmin -> denied, grants are not consulted
//  5. explicit grant matching an acceptable action -> allowed
//  6. otherwise continue with the parent; a root without a match -> denied
//
// A dangling parent reference surfaces as ErrResourceNotFound rather than
// being treated as a root.
func (r *Resolver) CanAccess(ctx context.Context, principal Principal, ref ResourceRef, actions ActionSet) (bool, error) {
	if len(actions) == 0 {
		return false, ErrEmptyActionSet
	}

	visited := make(map[ResourceRef]struct{})
	current := ref

	for depth := 0; ; depth++ {
		if depth >= r.maxDepth {
			return false, fmt.Errorf("authz: ancestor chain exceeds %d levels at %s/%d", r.maxDepth, current.Kind, current.ID)
		}
		if _, seen := visited[current]; seen {
			return false, fmt.Errorf("authz: ancestor cycle detected at %s/%d", current.Kind, current.ID)
		}
		visited[current] = struct{}{}

		resource, err := r.resources.FindResource(ctx, current)
		if err != nil {
			return false, err
		}

		if resource.OwnerID == principal.ID {
			return true, nil
		}
		if principal.IsAdmin() {
			// Superadmins bypass everything; plain admins are vetoed outright,
			// even when they hold an explicit grant.
			return principal.Superadmin, nil
		}

		action, ok, err := r.grants.FindGrant(ctx, principal.ID, current)
		if err != nil {
			return false, err
		}
		if ok && actions.Contains(action) {
			return true, nil
		}

		if resource.Parent == nil {
			return false, nil
		}
		current = *resource.Parent
	}
}

// CanAccessAction is a convenience wrapper for single-action checks.
func (r *Resolver) CanAccessAction(ctx context.Context, principal Principal, ref ResourceRef, action Action) (bool, error) {
	return r.CanAccess(ctx, principal, ref, Actions(action))
}
