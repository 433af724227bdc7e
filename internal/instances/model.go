package instances

import "time"

// Instance is an organizational tenant users can belong to.
type Instance struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Section is a named subdivision of an instance.
type Section struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instance_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
