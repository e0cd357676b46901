package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nexodrive/internal/domain"
)

type TrashRepository struct {
	db *sqlx.DB
}

func NewTrashRepository(db *sqlx.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

// GetTrashItems возвращает содержимое корзины аккаунта.
func (r *TrashRepository) GetTrashItems(ctx context.Context, ownerID uuid.UUID) ([]domain.TrashItem, error) {
	var items []domain.TrashItem
	query := `
        SELECT uuid, name, mime_type, size_bytes, deleted_at
        FROM files
        WHERE owner_id = $1 AND deleted_at IS NOT NULL
        ORDER BY deleted_at DESC
    `
	err := r.db.SelectContext(ctx, &items, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trash items: %w", err)
	}

	return items, nil
}

// GetExpiredItems возвращает файлы, пролежавшие в корзине дольше retention.
func (r *TrashRepository) GetExpiredItems(ctx context.Context, retention time.Duration) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE deleted_at IS NOT NULL AND deleted_at < $1
    `
	cutoff := time.Now().Add(-retention)

	err := r.db.SelectContext(ctx, &files, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired trash items: %w", err)
	}

	return files, nil
}
