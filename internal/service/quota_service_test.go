package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nexodrive/internal/domain"
	"nexodrive/internal/repository"
)

// fakeQuotaStore держит один аккаунт в памяти и повторяет семантику
// условного резервирования из репозитория.
type fakeQuotaStore struct {
	account *domain.Account
}

func (f *fakeQuotaStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if f.account == nil || f.account.ID != id {
		return nil, repository.ErrAccountNotFound
	}
	copied := *f.account
	return &copied, nil
}

func (f *fakeQuotaStore) ReserveBytes(_ context.Context, accountID uuid.UUID, deltaBytes int64) (bool, error) {
	if f.account == nil || f.account.ID != accountID {
		return false, repository.ErrAccountNotFound
	}
	if limit, limited := f.account.LimitBytes(); limited {
		if f.account.UsedBytes+deltaBytes > limit {
			return false, nil
		}
	}
	f.account.UsedBytes += deltaBytes
	return true, nil
}

func (f *fakeQuotaStore) ReleaseBytes(_ context.Context, accountID uuid.UUID, deltaBytes int64) error {
	if f.account == nil || f.account.ID != accountID {
		return repository.ErrAccountNotFound
	}
	f.account.UsedBytes -= deltaBytes
	if f.account.UsedBytes < 0 {
		f.account.UsedBytes = 0
	}
	return nil
}

func (f *fakeQuotaStore) UpdateQuotaLimit(_ context.Context, accountID uuid.UUID, newLimitMb *int64) error {
	if f.account == nil || f.account.ID != accountID {
		return repository.ErrAccountNotFound
	}
	f.account.QuotaLimitMb = newLimitMb
	return nil
}

func (f *fakeQuotaStore) CalculateAndUpdateUsedBytes(_ context.Context, _ uuid.UUID) error {
	return nil
}

type fakeRecorder struct {
	events []*domain.ActivityEvent
}

func (f *fakeRecorder) Record(_ context.Context, event *domain.ActivityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newQuotaFixture(limitMb *int64, usedBytes int64) (*QuotaService, *fakeQuotaStore, *fakeRecorder, uuid.UUID) {
	id := uuid.New()
	store := &fakeQuotaStore{account: &domain.Account{
		ID:           id,
		QuotaLimitMb: limitMb,
		UsedBytes:    usedBytes,
	}}
	feed := &fakeRecorder{}
	return NewQuotaService(store, feed, zap.NewNop()), store, feed, id
}

func mb(v int64) *int64 {
	return &v
}

func TestCheckAdmission(t *testing.T) {
	ctx := context.Background()

	t.Run("безлимитный тариф пропускает любой размер", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(nil, 1<<40)

		ok, err := svc.CheckAdmission(ctx, id, 1<<50)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("граница лимита включительная", func(t *testing.T) {
		// лимит 100 MiB = 104 857 600 байт
		svc, _, _, id := newQuotaFixture(mb(100), 0)

		ok, err := svc.CheckAdmission(ctx, id, 100*domain.BytesPerMiB)
		require.NoError(t, err)
		assert.True(t, ok, "ровно впритык должно помещаться")

		ok, err = svc.CheckAdmission(ctx, id, 100*domain.BytesPerMiB+1)
		require.NoError(t, err)
		assert.False(t, ok, "один лишний байт уже не помещается")
	})

	t.Run("почти заполненная квота", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(100), 104_857_500)

		ok, err := svc.CheckAdmission(ctx, id, 100)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.CheckAdmission(ctx, id, 101)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("неизвестный аккаунт закрывается отказом", func(t *testing.T) {
		svc, _, _, _ := newQuotaFixture(mb(100), 0)

		ok, err := svc.CheckAdmission(ctx, uuid.New(), 1)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.False(t, ok)
	})

	t.Run("отрицательный размер отклоняется", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(100), 0)

		ok, err := svc.CheckAdmission(ctx, id, -1)
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("допуск монотонен по размеру", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(10), 3*domain.BytesPerMiB)

		// если помещается больший размер, меньший помещается тем более
		okBig, err := svc.CheckAdmission(ctx, id, 7*domain.BytesPerMiB)
		require.NoError(t, err)
		require.True(t, okBig)

		okSmall, err := svc.CheckAdmission(ctx, id, domain.BytesPerMiB)
		require.NoError(t, err)
		assert.True(t, okSmall)
	})
}

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("резерв занимает байты", func(t *testing.T) {
		svc, store, _, id := newQuotaFixture(mb(100), 0)

		require.NoError(t, svc.Reserve(ctx, id, 40*domain.BytesPerMiB))
		assert.Equal(t, 40*domain.BytesPerMiB, store.account.UsedBytes)
	})

	t.Run("переполнение возвращает ErrQuotaExceeded и не меняет счетчик", func(t *testing.T) {
		svc, store, _, id := newQuotaFixture(mb(100), 90*domain.BytesPerMiB)

		err := svc.Reserve(ctx, id, 20*domain.BytesPerMiB)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.Equal(t, 90*domain.BytesPerMiB, store.account.UsedBytes)
	})

	t.Run("release возвращает байты и не уходит в минус", func(t *testing.T) {
		svc, store, _, id := newQuotaFixture(mb(100), 10*domain.BytesPerMiB)

		require.NoError(t, svc.Release(ctx, id, 4*domain.BytesPerMiB))
		assert.Equal(t, 6*domain.BytesPerMiB, store.account.UsedBytes)

		require.NoError(t, svc.Release(ctx, id, 100*domain.BytesPerMiB))
		assert.Equal(t, int64(0), store.account.UsedBytes)
	})

	t.Run("резерв после release снова проходит", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(10), 10*domain.BytesPerMiB)

		err := svc.Reserve(ctx, id, 1)
		require.ErrorIs(t, err, ErrQuotaExceeded)

		require.NoError(t, svc.Release(ctx, id, 5*domain.BytesPerMiB))
		assert.NoError(t, svc.Reserve(ctx, id, domain.BytesPerMiB))
	})

	t.Run("отрицательная дельта отклоняется", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(10), 0)

		assert.Error(t, svc.Reserve(ctx, id, -1))
		assert.Error(t, svc.Release(ctx, id, -1))
	})
}

func TestGetUsageSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("процент считается от лимита", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(50), 40*domain.BytesPerMiB)

		summary, err := svc.GetUsageSummary(ctx, id)
		require.NoError(t, err)
		assert.InDelta(t, 80.0, summary.Percent, 0.001)
		require.NotNil(t, summary.AvailableBytes)
		assert.Equal(t, 10*domain.BytesPerMiB, *summary.AvailableBytes)
	})

	t.Run("превышение квоты обрезается на 100", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(mb(50), 60*domain.BytesPerMiB)

		summary, err := svc.GetUsageSummary(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 100.0, summary.Percent)
		require.NotNil(t, summary.AvailableBytes)
		assert.Equal(t, int64(0), *summary.AvailableBytes)
	})

	t.Run("безлимит показывает ноль процентов", func(t *testing.T) {
		svc, _, _, id := newQuotaFixture(nil, 60*domain.BytesPerMiB)

		summary, err := svc.GetUsageSummary(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0.0, summary.Percent)
		assert.Nil(t, summary.AvailableBytes)
		assert.Nil(t, summary.QuotaLimitMb)
	})
}

func TestUpdateQuotaLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("смена лимита пишет событие в ленту", func(t *testing.T) {
		svc, store, feed, id := newQuotaFixture(mb(100), 0)

		require.NoError(t, svc.UpdateQuotaLimit(ctx, id, mb(200)))
		require.NotNil(t, store.account.QuotaLimitMb)
		assert.Equal(t, int64(200), *store.account.QuotaLimitMb)

		require.Len(t, feed.events, 1)
		assert.Equal(t, domain.ActivityQuotaChange, feed.events[0].Kind)
	})

	t.Run("nil снимает лимит", func(t *testing.T) {
		svc, store, _, id := newQuotaFixture(mb(100), 0)

		require.NoError(t, svc.UpdateQuotaLimit(ctx, id, nil))
		assert.Nil(t, store.account.QuotaLimitMb)
	})

	t.Run("отрицательный лимит отклоняется", func(t *testing.T) {
		svc, store, feed, id := newQuotaFixture(mb(100), 0)

		assert.Error(t, svc.UpdateQuotaLimit(ctx, id, mb(-5)))
		assert.Equal(t, int64(100), *store.account.QuotaLimitMb)
		assert.Empty(t, feed.events)
	})
}
