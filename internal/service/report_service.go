package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"nexodrive/internal/domain"
)

// После этого возраста событие показывается с абсолютной датой,
// а не с относительным временем.
const relativeTimeCutoff = 48 * time.Hour

// FileLister отдает живые файлы аккаунта для статистики.
type FileLister interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.File, error)
}

// ActivityReader читает последние события ленты аккаунта.
type ActivityReader interface {
	Recent(ctx context.Context, accountID uuid.UUID, limit int64) ([]domain.ActivityEvent, error)
}

// ReportService считает презентационные представления поверх леджера:
// разбивку по типам файлов и ленту недавней активности. Ничего не мутирует.
type ReportService struct {
	files FileLister
	feed  ActivityReader
}

func NewReportService(files FileLister, feed ActivityReader) *ReportService {
	return &ReportService{
		files: files,
		feed:  feed,
	}
}

var extensionCategories = map[string]string{
	".pdf": domain.TypeDocuments, ".doc": domain.TypeDocuments, ".docx": domain.TypeDocuments,
	".xls": domain.TypeDocuments, ".xlsx": domain.TypeDocuments, ".ppt": domain.TypeDocuments,
	".pptx": domain.TypeDocuments, ".txt": domain.TypeDocuments, ".csv": domain.TypeDocuments,
	".odt": domain.TypeDocuments, ".rtf": domain.TypeDocuments,

	".jpg": domain.TypeImages, ".jpeg": domain.TypeImages, ".png": domain.TypeImages,
	".gif": domain.TypeImages, ".webp": domain.TypeImages, ".svg": domain.TypeImages,
	".bmp": domain.TypeImages, ".tiff": domain.TypeImages,

	".mp4": domain.TypeVideo, ".avi": domain.TypeVideo, ".mkv": domain.TypeVideo,
	".mov": domain.TypeVideo, ".webm": domain.TypeVideo, ".wmv": domain.TypeVideo,

	".mp3": domain.TypeAudio, ".wav": domain.TypeAudio, ".ogg": domain.TypeAudio,
	".flac": domain.TypeAudio, ".aac": domain.TypeAudio, ".m4a": domain.TypeAudio,
}

// categorize относит файл к корзине статистики по расширению имени.
func categorize(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if category, ok := extensionCategories[ext]; ok {
		return category
	}
	return domain.TypeOther
}

// GetTypeBreakdown считает файлы аккаунта по категориям. Ширина полосы
// пропорциональна максимальной корзине; делитель не меньше единицы,
// чтобы пустое хранилище не приводило к делению на ноль.
func (s *ReportService) GetTypeBreakdown(ctx context.Context, ownerID uuid.UUID) (*domain.TypeBreakdown, error) {
	files, err := s.files.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}

	counts := map[string]int64{}
	for _, f := range files {
		counts[categorize(f.Name)]++
	}

	var maxCount int64
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	divisor := maxCount
	if divisor < 1 {
		divisor = 1
	}

	order := []string{
		domain.TypeDocuments,
		domain.TypeImages,
		domain.TypeVideo,
		domain.TypeAudio,
		domain.TypeOther,
	}

	breakdown := &domain.TypeBreakdown{
		Buckets:    make([]domain.TypeBucket, 0, len(order)),
		TotalFiles: int64(len(files)),
	}
	for _, category := range order {
		count := counts[category]
		breakdown.Buckets = append(breakdown.Buckets, domain.TypeBucket{
			Type:     category,
			Count:    count,
			BarWidth: int(count * 100 / divisor),
		})
	}

	return breakdown, nil
}

// GetRecentActivity возвращает ленту активности, подготовленную к показу.
func (s *ReportService) GetRecentActivity(ctx context.Context, ownerID uuid.UUID, limit int64) ([]domain.ActivityView, error) {
	events, err := s.feed.Recent(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}

	now := timeNow()
	views := make([]domain.ActivityView, 0, len(events))
	for _, event := range events {
		views = append(views, domain.ActivityView{
			Kind:       event.Kind,
			FileName:   event.FileName,
			DeltaHuman: formatDelta(event.DeltaBytes),
			When:       formatWhen(event.OccurredAt, now),
		})
	}

	return views, nil
}

// formatWhen показывает относительное время для свежих событий и
// абсолютную дату для событий старше 48 часов.
func formatWhen(occurredAt, now time.Time) string {
	if now.Sub(occurredAt) > relativeTimeCutoff {
		return occurredAt.Format("02.01.2006 15:04")
	}
	return humanize.RelTime(occurredAt, now, "ago", "from now")
}

func formatDelta(deltaBytes int64) string {
	switch {
	case deltaBytes > 0:
		return "+" + humanize.IBytes(uint64(deltaBytes))
	case deltaBytes < 0:
		return "-" + humanize.IBytes(uint64(-deltaBytes))
	default:
		return ""
	}
}
