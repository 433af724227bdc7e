package users

import "time"

// User represents a user account.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	IsActive     bool       `json:"is_active"`
	Roles        []string   `json:"roles"`
	IsSuperadmin bool       `json:"is_superadmin"`
	InstanceID   *int64     `json:"instance_id,omitempty"`
	SectionID    *int64     `json:"section_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ListFilters narrows user listings.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	InstanceID *int64
}
