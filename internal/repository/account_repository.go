package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nexodrive/internal/domain"
)

// ErrAccountNotFound возвращается, когда id аккаунта не разрешается в строку.
// Отсутствующий аккаунт никогда не трактуется как безлимитный.
var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
        INSERT INTO accounts (id, email, password_hash, role, quota_limit_mb, used_bytes)
        VALUES ($1, $2, $3, $4, $5, 0)
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.QuotaLimitMb,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account

	err := r.db.GetContext(ctx, &account,
		`SELECT * FROM accounts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account

	err := r.db.GetContext(ctx, &account,
		`SELECT * FROM accounts WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// ReserveBytes атомарно прибавляет deltaBytes к used_bytes, но только если
// итог не превышает лимит. Проверка и инкремент выполняются одним условным
// UPDATE, поэтому два конкурентных запроса не могут оба проскочить лимит.
// Возвращает false без ошибки, если места не хватило.
func (r *AccountRepository) ReserveBytes(ctx context.Context, accountID uuid.UUID, deltaBytes int64) (bool, error) {
	query := `
        UPDATE accounts
        SET used_bytes = used_bytes + $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
          AND (quota_limit_mb IS NULL OR used_bytes + $1 <= quota_limit_mb * 1048576)`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve bytes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows > 0 {
		return true, nil
	}

	// Ноль строк — либо аккаунт не существует, либо квота исчерпана.
	var exists bool
	err = r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return false, ErrAccountNotFound
	}

	return false, nil
}

// ReleaseBytes списывает байты обратно после удаления данных или отката
// неудавшейся загрузки. Счетчик не опускается ниже нуля.
func (r *AccountRepository) ReleaseBytes(ctx context.Context, accountID uuid.UUID, deltaBytes int64) error {
	query := `
        UPDATE accounts
        SET used_bytes = GREATEST(0, used_bytes - $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, accountID)
	if err != nil {
		return fmt.Errorf("failed to release bytes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateQuotaLimit меняет лимит аккаунта; nil снимает лимит полностью.
func (r *AccountRepository) UpdateQuotaLimit(ctx context.Context, accountID uuid.UUID, newLimitMb *int64) error {
	query := `
        UPDATE accounts
        SET quota_limit_mb = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimitMb, accountID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// CalculateAndUpdateUsedBytes пересчитывает used_bytes из фактических версий
// файлов. Административная сверка на случай дрейфа счетчика; файлы в корзине
// продолжают учитываться, освобождает место только окончательное удаление.
func (r *AccountRepository) CalculateAndUpdateUsedBytes(ctx context.Context, accountID uuid.UUID) error {
	query := `
        WITH account_usage AS (
            SELECT COALESCE(SUM(fv.size_bytes), 0) AS total_size
            FROM files f
            JOIN file_versions fv ON fv.file_uuid = f.uuid
            WHERE f.owner_id = $1
              AND fv.deleted_at IS NULL
        )
        UPDATE accounts a
        SET used_bytes = au.total_size,
            updated_at = CURRENT_TIMESTAMP
        FROM account_usage au
        WHERE a.id = $1`

	result, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to recalculate used bytes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return ErrAccountNotFound
	}

	return nil
}
