package stats

import "time"

// Usage is the admin statistics snapshot served from cache.
type Usage struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Totals      Totals          `json:"totals"`
	PerUser     []UserUsage     `json:"per_user"`
	PerInstance []InstanceUsage `json:"per_instance"`
}

// Totals aggregates the whole deployment.
type Totals struct {
	Users     int64 `json:"users"`
	Folders   int64 `json:"folders"`
	Files     int64 `json:"files"`
	SizeBytes int64 `json:"size_bytes"`
}

// UserUsage aggregates one user's footprint.
type UserUsage struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Folders   int64  `json:"folders"`
	Files     int64  `json:"files"`
	SizeBytes int64  `json:"size_bytes"`
}

// InstanceUsage aggregates an instance's footprint across its members.
type InstanceUsage struct {
	InstanceID int64  `json:"instance_id"`
	Name       string `json:"name"`
	Users      int64  `json:"users"`
	Files      int64  `json:"files"`
	SizeBytes  int64  `json:"size_bytes"`
}
