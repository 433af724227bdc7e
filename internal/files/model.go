package files

import "time"

// File represents file metadata inside a folder. Content storage lives
// elsewhere; this service only manages the hierarchy node.
type File struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	FolderID  int64     `json:"folder_id"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
