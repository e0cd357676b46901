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

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *FileRepository) Create(ctx context.Context, tx *sqlx.Tx, file *domain.File) error {
	query := `
        INSERT INTO files (uuid, name, mime_type, size_bytes, owner_id, current_version)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	err := tx.QueryRowContext(
		ctx,
		query,
		file.UUID,
		file.Name,
		file.MIMEType,
		file.SizeBytes,
		file.OwnerID,
		file.CurrentVersion,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	return nil
}

func (r *FileRepository) GetByUUID(ctx context.Context, uuid uuid.UUID) (*domain.File, error) {
	var file domain.File
	query := `SELECT * FROM files WHERE uuid = $1 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &file, query, uuid)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

// GetByOwner возвращает все живые (не в корзине) файлы аккаунта.
func (r *FileRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.File, error) {
	var files []domain.File
	query := `SELECT * FROM files WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY name`

	err := r.db.SelectContext(ctx, &files, query, ownerID)
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (r *FileRepository) Update(ctx context.Context, file *domain.File) error {
	query := `
        UPDATE files
        SET size_bytes = $1,
            current_version = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $3
    `
	_, err := r.db.ExecContext(ctx, query, file.SizeBytes, file.CurrentVersion, file.UUID)
	if err != nil {
		return fmt.Errorf("error updating file: %w", err)
	}
	return nil
}

// UpdateFileName обновляет имя файла
func (r *FileRepository) UpdateFileName(ctx context.Context, fileUUID uuid.UUID, newName string) error {
	query := `
        UPDATE files
        SET name = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2
    `
	result, err := r.db.ExecContext(ctx, query, newName, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to update file name: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("file not found")
	}

	return nil
}

func (r *FileRepository) CheckFileExists(ctx context.Context, ownerID uuid.UUID, fileName string) (*domain.File, error) {
	var file domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1
        AND name = $2
        AND deleted_at IS NULL
        LIMIT 1
    `
	err := r.db.GetContext(ctx, &file, query, ownerID, fileName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error checking file existence: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) CreateFileVersion(ctx context.Context, tx *sqlx.Tx, version *domain.FileVersion) error {
	query := `
        INSERT INTO file_versions (file_uuid, version_number, s3_key, size_bytes)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	return tx.QueryRowContext(ctx, query,
		version.FileUUID,
		version.VersionNumber,
		version.S3Key,
		version.SizeBytes,
	).Scan(&version.ID, &version.CreatedAt)
}

// GetFileVersions получает все живые версии файла, новые первыми.
func (r *FileRepository) GetFileVersions(ctx context.Context, fileUUID uuid.UUID) ([]domain.FileVersion, error) {
	var versions []domain.FileVersion
	query := `
        SELECT * FROM file_versions
        WHERE file_uuid = $1 AND deleted_at IS NULL
        ORDER BY version_number DESC
    `
	err := r.db.SelectContext(ctx, &versions, query, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file versions: %w", err)
	}
	return versions, nil
}

// DeleteVersion помечает версию как удаленную и возвращает её размер,
// чтобы вызывающий мог списать байты с квоты.
func (r *FileRepository) DeleteVersion(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID, versionNumber int) (int64, error) {
	query := `
        UPDATE file_versions
        SET deleted_at = CURRENT_TIMESTAMP
        WHERE file_uuid = $1 AND version_number = $2 AND deleted_at IS NULL
        RETURNING size_bytes
    `
	var sizeBytes int64
	err := tx.QueryRowContext(ctx, query, fileUUID, versionNumber).Scan(&sizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("version not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete version: %w", err)
	}

	return sizeBytes, nil
}

func (r *FileRepository) GetCurrentVersion(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID) (int, error) {
	var version int
	query := "SELECT current_version FROM files WHERE uuid = $1"
	err := tx.QueryRowContext(ctx, query, fileUUID).Scan(&version)
	return version, err
}

// SoftDelete перемещает файл в корзину. Байты остаются на счету аккаунта.
func (r *FileRepository) SoftDelete(ctx context.Context, fileUUID uuid.UUID) error {
	query := `
        UPDATE files
        SET deleted_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND deleted_at IS NULL
    `
	result, err := r.db.ExecContext(ctx, query, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to soft delete file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file not found")
	}

	return nil
}

// Restore возвращает файл из корзины.
func (r *FileRepository) Restore(ctx context.Context, fileUUID uuid.UUID) error {
	query := `
        UPDATE files
        SET deleted_at = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND deleted_at IS NOT NULL
    `
	result, err := r.db.ExecContext(ctx, query, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file not found in trash")
	}

	return nil
}

// HardDelete окончательно удаляет файл вместе с версиями.
func (r *FileRepository) HardDelete(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM file_versions WHERE file_uuid = $1`, fileUUID); err != nil {
		return fmt.Errorf("failed to delete file versions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM files WHERE uuid = $1`, fileUUID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// GetDeletedFileInfo получает информацию о файле, даже если он в корзине.
func (r *FileRepository) GetDeletedFileInfo(ctx context.Context, uuid uuid.UUID) (*domain.File, error) {
	var file domain.File
	query := `SELECT * FROM files WHERE uuid = $1`

	err := r.db.GetContext(ctx, &file, query, uuid)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

// GetChargedBytes возвращает суммарный размер живых версий файла —
// ровно столько числится за аккаунтом по этому файлу.
func (r *FileRepository) GetChargedBytes(ctx context.Context, fileUUID uuid.UUID) (int64, error) {
	var total int64
	query := `
        SELECT COALESCE(SUM(size_bytes), 0)
        FROM file_versions
        WHERE file_uuid = $1 AND deleted_at IS NULL
    `
	err := r.db.GetContext(ctx, &total, query, fileUUID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum version sizes: %w", err)
	}
	return total, nil
}
