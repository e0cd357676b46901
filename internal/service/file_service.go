package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexodrive/internal/domain"
	"nexodrive/internal/repository"
	"nexodrive/internal/service/s3"
)

const (
	maxFileSize            = 100 * 1024 * 1024 // 100MB максимальный размер файла
	defaultRollbackTimeout = 5 * time.Second
)

// Определение пользовательских ошибок
var (
	errFileTooLarge  = errors.New("file size exceeds maximum allowed size")
	errInvalidFile   = errors.New("invalid file")
	errAccessDenied  = errors.New("access denied")
	errFileNotFound  = errors.New("file not found")
	errS3Operation   = errors.New("s3 operation failed")
	errDatabaseError = errors.New("database operation failed")
)

// FileService реализует конвейер загрузки: резерв квоты, запись в S3,
// фиксация метаданных в БД. Инкремент квоты привязан к подтвержденной
// записи — при любой ошибке после резерва байты возвращаются.
type FileService struct {
	fileRepo     *repository.FileRepository
	quotaService *QuotaService
	s3Client     s3.Storage
	feed         ActivityRecorder
	preview      *PreviewService
	log          *zap.Logger
}

func NewFileService(
	fileRepo *repository.FileRepository,
	quotaService *QuotaService,
	s3Client s3.Storage,
	feed ActivityRecorder,
	preview *PreviewService,
	log *zap.Logger,
) *FileService {
	return &FileService{
		fileRepo:     fileRepo,
		quotaService: quotaService,
		s3Client:     s3Client,
		feed:         feed,
		preview:      preview,
		log:          log,
	}
}

func documentKey(ownerID uuid.UUID, fileUUID uuid.UUID) string {
	return fmt.Sprintf("documents/%s/%s", ownerID, fileUUID)
}

// UploadFile загружает файл в хранилище. Если файл с таким именем уже
// есть у аккаунта, создается новая версия.
func (s *FileService) UploadFile(
	ctx context.Context,
	header *multipart.FileHeader,
	file multipart.File,
	ownerID uuid.UUID,
) (*domain.File, error) {
	// Проверяем входные параметры
	if header == nil || file == nil || ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing required parameters", errInvalidFile)
	}

	// Проверяем размер файла
	if header.Size > maxFileSize {
		return nil, fmt.Errorf("%w: max size is %d bytes", errFileTooLarge, maxFileSize)
	}

	// Проверяем, существует ли файл с таким именем — тогда это новая версия
	existingFile, err := s.fileRepo.CheckFileExists(ctx, ownerID, filepath.Clean(header.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to check file existence: %w", err)
	}
	if existingFile != nil {
		return s.createFileVersion(ctx, file, header, existingFile)
	}

	// Атомарно резервируем место под файл. Здесь же закрывается гонка
	// конкурентных загрузок: проверка и инкремент — одна операция в БД.
	if err := s.quotaService.Reserve(ctx, ownerID, header.Size); err != nil {
		return nil, err
	}

	fileUUID := uuid.New()
	s3Key := documentKey(ownerID, fileUUID)

	// Определяем тип контента
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	newFile := &domain.File{
		UUID:           fileUUID,
		Name:           filepath.Clean(header.Filename),
		MIMEType:       contentType,
		SizeBytes:      header.Size,
		OwnerID:        ownerID,
		CurrentVersion: 1,
	}

	// Сначала надежно записываем байты в S3
	filePtr := &file
	if err := s.s3Client.UploadFile(s3Key, filePtr); err != nil {
		s.releaseReservation(ownerID, header.Size)
		return nil, fmt.Errorf("%w: %v", errS3Operation, err)
	}

	// Затем фиксируем метаданные в одной транзакции
	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		s.rollbackUpload(ownerID, header.Size, s3Key)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.fileRepo.Create(ctx, tx, newFile); err != nil {
		s.rollbackUpload(ownerID, header.Size, s3Key)
		return nil, fmt.Errorf("%w: %v", errDatabaseError, err)
	}

	version := &domain.FileVersion{
		FileUUID:      fileUUID,
		VersionNumber: 1,
		S3Key:         s3Key,
		SizeBytes:     header.Size,
	}

	if err := s.fileRepo.CreateFileVersion(ctx, tx, version); err != nil {
		s.rollbackUpload(ownerID, header.Size, s3Key)
		return nil, fmt.Errorf("failed to create file version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.rollbackUpload(ownerID, header.Size, s3Key)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.recordActivity(ownerID, domain.ActivityUpload, newFile.Name, header.Size)
	s.generatePreviewAsync(newFile, s3Key)

	return newFile, nil
}

// createFileVersion создает новую версию существующего файла. Резервируется
// только размер новой версии: старые версии уже числятся за аккаунтом.
func (s *FileService) createFileVersion(
	ctx context.Context,
	file multipart.File,
	header *multipart.FileHeader,
	existingFile *domain.File,
) (*domain.File, error) {
	if err := s.quotaService.Reserve(ctx, existingFile.OwnerID, header.Size); err != nil {
		return nil, err
	}

	newVersionNumber := existingFile.CurrentVersion + 1
	s3Key := fmt.Sprintf("%s/v%d", documentKey(existingFile.OwnerID, existingFile.UUID), newVersionNumber)

	filePtr := &file
	if err := s.s3Client.UploadFile(s3Key, filePtr); err != nil {
		s.releaseReservation(existingFile.OwnerID, header.Size)
		return nil, fmt.Errorf("%w: %v", errS3Operation, err)
	}

	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		s.rollbackUpload(existingFile.OwnerID, header.Size, s3Key)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	newVersion := &domain.FileVersion{
		FileUUID:      existingFile.UUID,
		VersionNumber: newVersionNumber,
		S3Key:         s3Key,
		SizeBytes:     header.Size,
	}

	if err := s.fileRepo.CreateFileVersion(ctx, tx, newVersion); err != nil {
		s.rollbackUpload(existingFile.OwnerID, header.Size, s3Key)
		return nil, fmt.Errorf("failed to create file version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.rollbackUpload(existingFile.OwnerID, header.Size, s3Key)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Обновляем текущую версию вне транзакции версий, как и размер
	existingFile.CurrentVersion = newVersionNumber
	existingFile.SizeBytes = header.Size
	if err := s.fileRepo.Update(ctx, existingFile); err != nil {
		return nil, fmt.Errorf("failed to update file: %w", err)
	}

	s.recordActivity(existingFile.OwnerID, domain.ActivityReplace, existingFile.Name, header.Size)
	s.generatePreviewAsync(existingFile, s3Key)

	return existingFile, nil
}

// releaseReservation возвращает зарезервированные байты после сбоя.
func (s *FileService) releaseReservation(ownerID uuid.UUID, size int64) {
	// Исходный контекст запроса мог быть уже отменен
	ctx, cancel := context.WithTimeout(context.Background(), defaultRollbackTimeout)
	defer cancel()

	if err := s.quotaService.Release(ctx, ownerID, size); err != nil {
		s.log.Error("failed to release quota reservation",
			zap.String("owner_id", ownerID.String()),
			zap.Int64("size_bytes", size),
			zap.Error(err))
	}
}

// rollbackUpload откатывает резерв квоты и убирает объект из S3.
func (s *FileService) rollbackUpload(ownerID uuid.UUID, size int64, s3Key string) {
	s.releaseReservation(ownerID, size)
	if err := s.s3Client.DeleteObject(s3Key); err != nil {
		s.log.Error("failed to delete file from s3 after rollback", zap.Error(err))
	}
}

// GetFileInfo получает информацию о файле с проверкой владельца.
func (s *FileService) GetFileInfo(ctx context.Context, fileUUID uuid.UUID, ownerID uuid.UUID) (*domain.File, error) {
	file, err := s.fileRepo.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errFileNotFound, err)
	}

	if file.OwnerID != ownerID {
		return nil, errAccessDenied
	}

	return file, nil
}

// GetFilesByOwner возвращает список живых файлов аккаунта.
func (s *FileService) GetFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.File, error) {
	files, err := s.fileRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}
	return files, nil
}

// DownloadFile скачивает текущую версию файла из хранилища.
func (s *FileService) DownloadFile(ctx context.Context, fileUUID uuid.UUID, ownerID uuid.UUID) (*domain.FileDownload, error) {
	file, err := s.GetFileInfo(ctx, fileUUID, ownerID)
	if err != nil {
		return nil, err
	}

	versions, err := s.fileRepo.GetFileVersions(ctx, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file versions: %w", err)
	}

	s3Key := documentKey(file.OwnerID, fileUUID)
	for _, v := range versions {
		if v.VersionNumber == file.CurrentVersion {
			s3Key = v.S3Key
			break
		}
	}

	body, err := s.s3Client.GetObject(ctx, s3Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errS3Operation, err)
	}
	defer body.Close()

	data := make([]byte, 0, file.SizeBytes)
	buffer := bytes.NewBuffer(data)

	if _, err := io.Copy(buffer, body); err != nil {
		return nil, fmt.Errorf("error reading from s3: %w", err)
	}

	return &domain.FileDownload{
		File: file,
		Data: buffer.Bytes(),
	}, nil
}

// DeleteFile перемещает файл в корзину. Байты продолжают числиться за
// аккаунтом до окончательного удаления.
func (s *FileService) DeleteFile(ctx context.Context, fileUUID uuid.UUID, ownerID uuid.UUID) error {
	file, err := s.GetFileInfo(ctx, fileUUID, ownerID)
	if err != nil {
		return err
	}

	if err := s.fileRepo.SoftDelete(ctx, fileUUID); err != nil {
		return fmt.Errorf("failed to move file to trash: %w", err)
	}

	s.recordActivity(ownerID, domain.ActivityDelete, file.Name, 0)

	return nil
}

// RenameFile переименовывает файл
func (s *FileService) RenameFile(ctx context.Context, fileUUID uuid.UUID, newName string, ownerID uuid.UUID) error {
	if newName == "" {
		return fmt.Errorf("%w: missing required parameters", errInvalidFile)
	}

	file, err := s.GetFileInfo(ctx, fileUUID, ownerID)
	if err != nil {
		return err
	}

	// Проверяем, нет ли у аккаунта файла с таким именем
	existingFile, err := s.fileRepo.CheckFileExists(ctx, ownerID, newName)
	if err != nil {
		return fmt.Errorf("failed to check file existence: %w", err)
	}
	if existingFile != nil && existingFile.UUID != fileUUID {
		return fmt.Errorf("file with name %s already exists", newName)
	}

	if err := s.fileRepo.UpdateFileName(ctx, file.UUID, filepath.Clean(newName)); err != nil {
		return fmt.Errorf("%w: %v", errDatabaseError, err)
	}

	return nil
}

// GetFileVersions возвращает историю версий файла.
func (s *FileService) GetFileVersions(ctx context.Context, fileUUID uuid.UUID, ownerID uuid.UUID) ([]domain.FileVersion, error) {
	if _, err := s.GetFileInfo(ctx, fileUUID, ownerID); err != nil {
		return nil, err
	}
	return s.fileRepo.GetFileVersions(ctx, fileUUID)
}

// DeleteVersion окончательно удаляет старую версию файла и возвращает
// её байты в квоту. Текущую версию удалить нельзя.
func (s *FileService) DeleteVersion(ctx context.Context, fileUUID uuid.UUID, versionNumber int, ownerID uuid.UUID) error {
	file, err := s.GetFileInfo(ctx, fileUUID, ownerID)
	if err != nil {
		return err
	}

	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentVersion, err := s.fileRepo.GetCurrentVersion(ctx, tx, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if versionNumber == currentVersion {
		return errors.New("cannot delete current version")
	}

	sizeBytes, err := s.fileRepo.DeleteVersion(ctx, tx, fileUUID, versionNumber)
	if err != nil {
		return fmt.Errorf("failed to mark version as deleted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s3Key := documentKey(file.OwnerID, fileUUID)
	if versionNumber > 1 {
		s3Key = fmt.Sprintf("%s/v%d", s3Key, versionNumber)
	}
	if err := s.s3Client.DeleteObject(s3Key); err != nil {
		s.log.Error("failed to delete version from s3", zap.Error(err))
	}

	// Версия удалена окончательно — байты возвращаются в квоту
	if err := s.quotaService.Release(ctx, ownerID, sizeBytes); err != nil {
		s.log.Error("failed to release bytes after version delete", zap.Error(err))
	}

	s.recordActivity(ownerID, domain.ActivityPurge, file.Name, -sizeBytes)

	return nil
}

func (s *FileService) recordActivity(ownerID uuid.UUID, kind, fileName string, deltaBytes int64) {
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

// generatePreviewAsync запускает фоновую генерацию превью для изображений.
func (s *FileService) generatePreviewAsync(file *domain.File, s3Key string) {
	if s.preview == nil || !strings.HasPrefix(file.MIMEType, "image/") {
		return
	}

	go s.preview.Generate(file.UUID, s3Key)
}
