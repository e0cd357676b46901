package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexodrive/internal/domain"
)

type fakeFileLister struct {
	files []domain.File
}

func (f *fakeFileLister) GetByOwner(_ context.Context, _ uuid.UUID) ([]domain.File, error) {
	return f.files, nil
}

type fakeActivityReader struct {
	events []domain.ActivityEvent
}

func (f *fakeActivityReader) Recent(_ context.Context, _ uuid.UUID, _ int64) ([]domain.ActivityEvent, error) {
	return f.events, nil
}

func namedFiles(names ...string) []domain.File {
	files := make([]domain.File, 0, len(names))
	for _, name := range names {
		files = append(files, domain.File{UUID: uuid.New(), Name: name})
	}
	return files
}

func bucketByType(t *testing.T, breakdown *domain.TypeBreakdown, typ string) domain.TypeBucket {
	t.Helper()
	for _, b := range breakdown.Buckets {
		if b.Type == typ {
			return b
		}
	}
	t.Fatalf("bucket %q not found", typ)
	return domain.TypeBucket{}
}

func TestGetTypeBreakdown(t *testing.T) {
	ctx := context.Background()

	t.Run("пустое хранилище не делит на ноль", func(t *testing.T) {
		svc := NewReportService(&fakeFileLister{}, &fakeActivityReader{})

		breakdown, err := svc.GetTypeBreakdown(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, int64(0), breakdown.TotalFiles)
		require.Len(t, breakdown.Buckets, 5)
		for _, b := range breakdown.Buckets {
			assert.Equal(t, int64(0), b.Count)
			assert.Equal(t, 0, b.BarWidth)
		}
	})

	t.Run("ширина полосы пропорциональна максимальной корзине", func(t *testing.T) {
		files := namedFiles(
			"report.pdf", "notes.txt", "contract.docx", "data.csv",
			"photo.jpg", "scan.png",
			"song.mp3",
		)
		svc := NewReportService(&fakeFileLister{files: files}, &fakeActivityReader{})

		breakdown, err := svc.GetTypeBreakdown(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, int64(7), breakdown.TotalFiles)

		docs := bucketByType(t, breakdown, domain.TypeDocuments)
		assert.Equal(t, int64(4), docs.Count)
		assert.Equal(t, 100, docs.BarWidth)

		images := bucketByType(t, breakdown, domain.TypeImages)
		assert.Equal(t, int64(2), images.Count)
		assert.Equal(t, 50, images.BarWidth)

		audio := bucketByType(t, breakdown, domain.TypeAudio)
		assert.Equal(t, int64(1), audio.Count)
		assert.Equal(t, 25, audio.BarWidth)

		video := bucketByType(t, breakdown, domain.TypeVideo)
		assert.Equal(t, int64(0), video.Count)
		assert.Equal(t, 0, video.BarWidth)
	})

	t.Run("расширение не из словаря попадает в other", func(t *testing.T) {
		files := namedFiles("archive.zip", "binary", "image.JPG")
		svc := NewReportService(&fakeFileLister{files: files}, &fakeActivityReader{})

		breakdown, err := svc.GetTypeBreakdown(ctx, uuid.New())
		require.NoError(t, err)

		other := bucketByType(t, breakdown, domain.TypeOther)
		assert.Equal(t, int64(2), other.Count)

		// регистр расширения не важен
		images := bucketByType(t, breakdown, domain.TypeImages)
		assert.Equal(t, int64(1), images.Count)
	})
}

func TestGetRecentActivity(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	restore := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = restore }()

	events := []domain.ActivityEvent{
		{Kind: domain.ActivityUpload, FileName: "fresh.pdf", DeltaBytes: 2048, OccurredAt: now.Add(-2 * time.Hour)},
		{Kind: domain.ActivityPurge, FileName: "old.png", DeltaBytes: -4096, OccurredAt: now.Add(-72 * time.Hour)},
		{Kind: domain.ActivityQuotaChange, OccurredAt: now.Add(-time.Minute)},
	}
	svc := NewReportService(&fakeFileLister{}, &fakeActivityReader{events: events})

	views, err := svc.GetRecentActivity(ctx, uuid.New(), 10)
	require.NoError(t, err)
	require.Len(t, views, 3)

	t.Run("свежие события показываются относительным временем", func(t *testing.T) {
		assert.Contains(t, views[0].When, "ago")
		assert.Equal(t, "+2.0 KiB", views[0].DeltaHuman)
	})

	t.Run("события старше 48 часов показываются абсолютной датой", func(t *testing.T) {
		assert.Equal(t, "12.06.2025 12:00", views[1].When)
		assert.Equal(t, "-4.0 KiB", views[1].DeltaHuman)
	})

	t.Run("событие без дельты не показывает размер", func(t *testing.T) {
		assert.Equal(t, "", views[2].DeltaHuman)
		assert.Equal(t, domain.ActivityQuotaChange, views[2].Kind)
	})
}
