package grants

import (
	"time"

	"github.com/filehaven/filehaven/internal/authz"
)

// Grant is an explicit permission row linking a user to a resource with a
// single action. At most one grant exists per (user, resource) pair; changing
// the action rewrites the row rather than adding a second one.
type Grant struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"user_id"`
	ResourceKind authz.ResourceKind `json:"resource_kind"`
	ResourceID   int64              `json:"resource_id"`
	Action       authz.Action       `json:"action"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Ref returns the resource reference the grant applies to.
func (g Grant) Ref() authz.ResourceRef {
	return authz.ResourceRef{Kind: g.ResourceKind, ID: g.ResourceID}
}
