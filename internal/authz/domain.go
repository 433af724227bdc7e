// Package authz implements permission resolution for the folder/file hierarchy.
//
// Access to a resource is decided by a fixed precedence chain: ownership,
// superadmin override, plain-admin veto, explicit grant, then the same checks
// against each ancestor folder up to the root. The resolver is a pure read-only
// function over the resource and grant stores and is safe for concurrent use.
package authz

import (
	"context"
	"errors"
)

// Action is a discrete capability on a resource. Actions do not imply one
// another: a write grant does not satisfy a read check unless the caller
// accepts both.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Valid reports whether the action is a known value.
func (a Action) Valid() bool {
	return a == ActionRead || a == ActionWrite
}

// ActionSet is an any-of set of acceptable actions for a check.
type ActionSet map[Action]struct{}

// Actions builds an ActionSet from the given actions.
func Actions(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Contains reports whether a is in the set.
func (s ActionSet) Contains(a Action) bool {
	_, ok := s[a]
	return ok
}

// Role is a coarse permission grouping assigned to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal describes the authenticated actor making an access request.
// Superadmin is only consulted when the admin role is present.
type Principal struct {
	ID         int64
	Roles      []Role
	Superadmin bool
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// IsSuperadmin reports whether the principal is an admin with the elevated flag.
func (p Principal) IsSuperadmin() bool {
	return p.IsAdmin() && p.Superadmin
}

// ResourceKind discriminates folder and file nodes.
type ResourceKind string

const (
	KindFolder ResourceKind = "folder"
	KindFile   ResourceKind = "file"
)

// Valid reports whether the kind is a known value.
func (k ResourceKind) Valid() bool {
	return k == KindFolder || k == KindFile
}

// ResourceRef identifies a folder or file node.
type ResourceRef struct {
	Kind ResourceKind
	ID   int64
}

// Resource is the resolver's view of a node: its owner and optional parent.
// A nil Parent marks a root. A file's parent is its containing folder.
type Resource struct {
	Ref     ResourceRef
	OwnerID int64
	Parent  *ResourceRef
}

// ErrResourceNotFound signals that the target resource, or one of its declared
// ancestors, does not exist. Callers surface this as a 404, never a 403.
var ErrResourceNotFound = errors.New("authz: resource not found")

// ErrEmptyActionSet signals a check invoked without any acceptable action.
var ErrEmptyActionSet = errors.New("authz: empty action set")

// ResourceStore looks up a resource node by reference. Implementations return
// ErrResourceNotFound when the reference does not resolve.
type ResourceStore interface {
	FindResource(ctx context.Context, ref ResourceRef) (Resource, error)
}

// GrantStore looks up the explicit grant for a (principal, resource) pair.
// The boolean result reports whether a grant exists; at most one grant is
// stored per pair.
type GrantStore interface {
	FindGrant(ctx context.Context, principalID int64, ref ResourceRef) (Action, bool, error)
}
