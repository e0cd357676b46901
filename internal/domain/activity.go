package domain

import (
	"time"

	"github.com/google/uuid"
)

// Виды событий в ленте активности аккаунта.
const (
	ActivityUpload      = "upload"
	ActivityReplace     = "replace"
	ActivityDelete      = "delete"
	ActivityRestore     = "restore"
	ActivityPurge       = "purge"
	ActivityQuotaChange = "quota_change"
)

// ActivityEvent — одно событие ленты недавней активности.
type ActivityEvent struct {
	AccountID  uuid.UUID `json:"account_id"`
	Kind       string    `json:"kind"`
	FileName   string    `json:"file_name,omitempty"`
	DeltaBytes int64     `json:"delta_bytes"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityView — событие, подготовленное к отображению. Для событий старше
// 48 часов When содержит абсолютную дату вместо относительного времени.
type ActivityView struct {
	Kind       string `json:"kind"`
	FileName   string `json:"file_name,omitempty"`
	DeltaHuman string `json:"delta_human"`
	When       string `json:"when"`
}
