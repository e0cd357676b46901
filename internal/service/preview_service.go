package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/h2non/bimg"
	"go.uber.org/zap"

	"nexodrive/internal/service/s3"
)

const (
	previewMaxSize     = 300 // максимальная сторона превью в пикселях
	previewJPEGQuality = 80
	previewTimeout     = defaultRollbackTimeout * 6
)

// PreviewService генерирует JPEG-превью для загруженных изображений и
// кеширует их в S3. Генерация best-effort: ошибка не влияет на загрузку.
type PreviewService struct {
	s3Client s3.Storage
	log      *zap.Logger
}

func NewPreviewService(s3Client s3.Storage, log *zap.Logger) *PreviewService {
	return &PreviewService{
		s3Client: s3Client,
		log:      log,
	}
}

func previewKey(fileUUID uuid.UUID) string {
	return fmt.Sprintf("previews/%s", fileUUID)
}

// Generate создает превью для объекта и кладет его рядом в S3.
// Вызывается из фоновой горутины после успешной загрузки.
func (s *PreviewService) Generate(fileUUID uuid.UUID, sourceKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
	defer cancel()

	object, err := s.s3Client.GetObject(ctx, sourceKey)
	if err != nil {
		s.log.Warn("preview: failed to get source object", zap.Error(err))
		return
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		s.log.Warn("preview: failed to read source object", zap.Error(err))
		return
	}

	thumbnail, err := s.optimizeImage(data)
	if err != nil {
		s.log.Warn("preview: failed to generate thumbnail",
			zap.String("file_uuid", fileUUID.String()), zap.Error(err))
		return
	}

	if err := s.s3Client.UploadBytes(previewKey(fileUUID), thumbnail); err != nil {
		s.log.Warn("preview: failed to save thumbnail", zap.Error(err))
	}
}

// GetPreview возвращает сохраненное превью файла.
func (s *PreviewService) GetPreview(ctx context.Context, fileUUID uuid.UUID) (s3.S3Object, error) {
	return s.s3Client.GetObject(ctx, previewKey(fileUUID))
}

// optimizeImage уменьшает изображение до размера превью с сохранением
// пропорций и перекодирует в JPEG.
func (s *PreviewService) optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, previewMaxSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: previewJPEGQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}
