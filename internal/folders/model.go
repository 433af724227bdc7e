package folders

import "time"

// Folder represents a folder node in the ownership hierarchy.
type Folder struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
