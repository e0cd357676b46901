package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexodrive/internal/domain"
)

func setupActivityRepo(t *testing.T) (*ActivityRepository, *miniredis.Miniredis) {
	t.Helper()

	// стартуем miniredis
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewActivityRepository(client), mr
}

func TestActivityRepository_RecordAndRecent(t *testing.T) {
	repo, _ := setupActivityRepo(t)
	ctx := context.Background()
	accountID := uuid.New()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []string{domain.ActivityUpload, domain.ActivityDelete, domain.ActivityRestore} {
		err := repo.Record(ctx, &domain.ActivityEvent{
			AccountID:  accountID,
			Kind:       kind,
			FileName:   fmt.Sprintf("file-%d.pdf", i),
			DeltaBytes: int64(i * 100),
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := repo.Recent(ctx, accountID, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// новые события первыми
	assert.Equal(t, domain.ActivityRestore, events[0].Kind)
	assert.Equal(t, domain.ActivityDelete, events[1].Kind)
	assert.Equal(t, domain.ActivityUpload, events[2].Kind)
	assert.Equal(t, "file-2.pdf", events[0].FileName)
	assert.Equal(t, int64(200), events[0].DeltaBytes)
	assert.True(t, events[0].OccurredAt.Equal(base.Add(2*time.Minute)))
}

func TestActivityRepository_FeedIsCapped(t *testing.T) {
	repo, _ := setupActivityRepo(t)
	ctx := context.Background()
	accountID := uuid.New()

	for i := 0; i < activityFeedCap+20; i++ {
		err := repo.Record(ctx, &domain.ActivityEvent{
			AccountID:  accountID,
			Kind:       domain.ActivityUpload,
			FileName:   fmt.Sprintf("file-%d.txt", i),
			OccurredAt: time.Now(),
		})
		require.NoError(t, err)
	}

	events, err := repo.Recent(ctx, accountID, 0)
	require.NoError(t, err)
	assert.Len(t, events, activityFeedCap)

	// старые события вытеснены, последнее записанное в голове
	assert.Equal(t, fmt.Sprintf("file-%d.txt", activityFeedCap+19), events[0].FileName)
}

func TestActivityRepository_RecentLimitsAndIsolation(t *testing.T) {
	repo, _ := setupActivityRepo(t)
	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, &domain.ActivityEvent{
			AccountID:  first,
			Kind:       domain.ActivityUpload,
			OccurredAt: time.Now(),
		}))
	}

	t.Run("limit ограничивает выдачу", func(t *testing.T) {
		events, err := repo.Recent(ctx, first, 2)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("ленты аккаунтов независимы", func(t *testing.T) {
		events, err := repo.Recent(ctx, second, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestActivityRepository_SkipsCorruptEntries(t *testing.T) {
	repo, mr := setupActivityRepo(t)
	ctx := context.Background()
	accountID := uuid.New()

	require.NoError(t, repo.Record(ctx, &domain.ActivityEvent{
		AccountID:  accountID,
		Kind:       domain.ActivityUpload,
		FileName:   "good.pdf",
		OccurredAt: time.Now(),
	}))

	// подкладываем в ленту мусор напрямую
	_, err := mr.Lpush(fmt.Sprintf("activity:%s", accountID), "{not json")
	require.NoError(t, err)

	events, err := repo.Recent(ctx, accountID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "good.pdf", events[0].FileName)
}
