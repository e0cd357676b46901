package domain

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	UUID           uuid.UUID  `json:"uuid" db:"uuid"`
	Name           string     `json:"name" db:"name"`
	MIMEType       string     `json:"mime_type" db:"mime_type"`
	SizeBytes      int64      `json:"size_bytes" db:"size_bytes"`
	OwnerID        uuid.UUID  `json:"owner_id" db:"owner_id"`
	CurrentVersion int        `json:"current_version" db:"current_version"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type FileDownload struct {
	File *File
	Data []byte
}

// FileUploadResponse представляет ответ на загрузку файла
type FileUploadResponse struct {
	UUID      uuid.UUID `json:"uuid"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}
