package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// BytesPerMiB — все квоты на границе API выражаются в мебибайтах.
// Именно 1 048 576, а не десятичный мегабайт: неверный множитель
// незаметно меняет эффективную квоту каждого пользователя на ~5%.
const BytesPerMiB int64 = 1 << 20

// Account представляет учетную запись с квотой хранилища.
// QuotaLimitMb == nil означает безлимитный тариф (например, администратор).
type Account struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	QuotaLimitMb *int64    `json:"quota_limit_mb" db:"quota_limit_mb"`
	UsedBytes    int64     `json:"used_bytes" db:"used_bytes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Unlimited сообщает, действует ли на аккаунт лимит хранилища.
func (a *Account) Unlimited() bool {
	return a.QuotaLimitMb == nil
}

// LimitBytes возвращает лимит в байтах и false для безлимитного тарифа.
func (a *Account) LimitBytes() (int64, bool) {
	if a.QuotaLimitMb == nil {
		return 0, false
	}
	return *a.QuotaLimitMb * BytesPerMiB, true
}
