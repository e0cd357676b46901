package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexodrive/internal/domain"
	"nexodrive/internal/repository"
	"nexodrive/internal/service/s3"
)

// TrashService управляет жизненным циклом корзины. Байты файла
// освобождаются из квоты только здесь — при окончательном удалении.
type TrashService struct {
	trashRepo    *repository.TrashRepository
	fileRepo     *repository.FileRepository
	s3Client     s3.Storage
	quotaService *QuotaService
	feed         ActivityRecorder
	retention    time.Duration
	log          *zap.Logger
}

func NewTrashService(
	trashRepo *repository.TrashRepository,
	fileRepo *repository.FileRepository,
	s3Client s3.Storage,
	quotaService *QuotaService,
	feed ActivityRecorder,
	retention time.Duration,
	log *zap.Logger,
) *TrashService {
	return &TrashService{
		trashRepo:    trashRepo,
		fileRepo:     fileRepo,
		s3Client:     s3Client,
		quotaService: quotaService,
		feed:         feed,
		retention:    retention,
		log:          log,
	}
}

// GetTrashItems получает список элементов в корзине
func (s *TrashService) GetTrashItems(ctx context.Context, ownerID uuid.UUID) ([]domain.TrashItem, error) {
	items, err := s.trashRepo.GetTrashItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// Вычисляем, сколько осталось до автоудаления
	now := timeNow()
	for i := range items {
		expiresAt := items[i].DeletedAt.Add(s.retention)
		remaining := expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		items[i].ExpiresIn = remaining.Round(time.Minute).String()
	}

	return items, nil
}

// RestoreFromTrash восстанавливает файл из корзины. Квота не меняется:
// файл в корзине и так числился за аккаунтом.
func (s *TrashService) RestoreFromTrash(ctx context.Context, fileUUID uuid.UUID, ownerID uuid.UUID) error {
	file, err := s.fileRepo.GetDeletedFileInfo(ctx, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	if file.OwnerID != ownerID {
		return errAccessDenied
	}

	if err := s.fileRepo.Restore(ctx, fileUUID); err != nil {
		return err
	}

	s.recordActivity(ownerID, domain.ActivityRestore, file.Name, 0)

	return nil
}

// DeletePermanently окончательно удаляет файл из корзины: объекты всех
// версий убираются из S3, строки удаляются, суммарные байты версий
// возвращаются в квоту.
func (s *TrashService) DeletePermanently(ctx context.Context, fileUUID uuid.UUID, ownerID uuid.UUID) error {
	file, err := s.fileRepo.GetDeletedFileInfo(ctx, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	if file.OwnerID != ownerID {
		return errAccessDenied
	}
	if file.DeletedAt == nil {
		return fmt.Errorf("file is not in trash")
	}

	return s.purgeFile(ctx, file)
}

// EmptyTrash полностью очищает корзину пользователя
func (s *TrashService) EmptyTrash(ctx context.Context, ownerID uuid.UUID) error {
	items, err := s.trashRepo.GetTrashItems(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to get trash items: %w", err)
	}

	for _, item := range items {
		file, err := s.fileRepo.GetDeletedFileInfo(ctx, item.UUID)
		if err != nil {
			s.log.Warn("failed to get trash item info",
				zap.String("uuid", item.UUID.String()), zap.Error(err))
			continue
		}
		if err := s.purgeFile(ctx, file); err != nil {
			s.log.Warn("failed to purge trash item",
				zap.String("uuid", item.UUID.String()), zap.Error(err))
		}
	}

	return nil
}

// AutoCleanup окончательно удаляет файлы, пролежавшие в корзине дольше
// периода хранения. Запускается по таймеру из main.
func (s *TrashService) AutoCleanup(ctx context.Context) error {
	expired, err := s.trashRepo.GetExpiredItems(ctx, s.retention)
	if err != nil {
		return fmt.Errorf("failed to get expired items: %w", err)
	}

	for i := range expired {
		if err := s.purgeFile(ctx, &expired[i]); err != nil {
			s.log.Warn("failed to auto-purge trash item",
				zap.String("uuid", expired[i].UUID.String()), zap.Error(err))
		}
	}

	return nil
}

// purgeFile — общий путь окончательного удаления. Считаем, сколько байт
// числится за файлом, удаляем объекты и строки, затем списываем байты.
func (s *TrashService) purgeFile(ctx context.Context, file *domain.File) error {
	chargedBytes, err := s.fileRepo.GetChargedBytes(ctx, file.UUID)
	if err != nil {
		return fmt.Errorf("failed to get charged bytes: %w", err)
	}

	versions, err := s.fileRepo.GetFileVersions(ctx, file.UUID)
	if err != nil {
		return fmt.Errorf("failed to get file versions: %w", err)
	}

	// Удаляем все версии из S3
	for _, version := range versions {
		if err := s.s3Client.DeleteObject(version.S3Key); err != nil {
			s.log.Warn("failed to delete version from S3",
				zap.Int("version", version.VersionNumber), zap.Error(err))
		}
	}

	// Удаляем превью, если оно есть
	if err := s.s3Client.DeleteObject(previewKey(file.UUID)); err != nil {
		s.log.Warn("failed to delete preview from S3", zap.Error(err))
	}

	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.fileRepo.HardDelete(ctx, tx, file.UUID); err != nil {
		return fmt.Errorf("failed to delete file from database: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Данные удалены окончательно — возвращаем байты в квоту
	if chargedBytes > 0 {
		if err := s.quotaService.Release(ctx, file.OwnerID, chargedBytes); err != nil {
			s.log.Error("failed to release quota after purge",
				zap.String("owner_id", file.OwnerID.String()), zap.Error(err))
		}
	}

	s.recordActivity(file.OwnerID, domain.ActivityPurge, file.Name, -chargedBytes)

	return nil
}

func (s *TrashService) recordActivity(ownerID uuid.UUID, kind, fileName string, deltaBytes int64) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRollbackTimeout)
	defer cancel()

	event := &domain.ActivityEvent{
		AccountID:  ownerID,
		Kind:       kind,
		FileName:   fileName,
		DeltaBytes: deltaBytes,
		OccurredAt: timeNow(),
	}
	if err := s.feed.Record(ctx, event); err != nil {
		s.log.Warn("failed to record activity", zap.Error(err))
	}
}
