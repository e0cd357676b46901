// trash.go

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrashItem представляет файл, помещенный в корзину. Пока файл лежит в
// корзине, его байты продолжают числиться за аккаунтом; квота
// освобождается только при окончательном удалении.
type TrashItem struct {
	UUID      uuid.UUID `json:"uuid" db:"uuid"`
	Name      string    `json:"name" db:"name"`
	MIMEType  string    `json:"mime_type" db:"mime_type"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	DeletedAt time.Time `json:"deleted_at" db:"deleted_at"`
	ExpiresIn string    `json:"expires_in"` // Это поле вычисляемое
}
