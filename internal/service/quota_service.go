package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexodrive/internal/domain"
	"nexodrive/internal/repository"
)

var (
	// ErrAccountNotFound — id аккаунта не разрешился в строку. Проверка
	// закрывается отказом: неизвестный аккаунт не получает места.
	ErrAccountNotFound = repository.ErrAccountNotFound

	// ErrQuotaExceeded — загрузка не помещается в лимит аккаунта.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	errNegativeSize = errors.New("size cannot be negative")
)

// QuotaStore — доступ к строке квоты аккаунта в хранилище.
type QuotaStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ReserveBytes(ctx context.Context, accountID uuid.UUID, deltaBytes int64) (bool, error)
	ReleaseBytes(ctx context.Context, accountID uuid.UUID, deltaBytes int64) error
	UpdateQuotaLimit(ctx context.Context, accountID uuid.UUID, newLimitMb *int64) error
	CalculateAndUpdateUsedBytes(ctx context.Context, accountID uuid.UUID) error
}

// ActivityRecorder пишет событие в ленту активности аккаунта.
type ActivityRecorder interface {
	Record(ctx context.Context, event *domain.ActivityEvent) error
}

type QuotaService struct {
	store QuotaStore
	feed  ActivityRecorder
	log   *zap.Logger
}

func NewQuotaService(store QuotaStore, feed ActivityRecorder, log *zap.Logger) *QuotaService {
	return &QuotaService{
		store: store,
		feed:  feed,
		log:   log,
	}
}

// CheckAdmission отвечает, поместится ли загрузка размером candidateBytes в
// квоту аккаунта. Проверка только читает — никаких побочных эффектов.
// Любая ошибка чтения означает отказ в допуске, никогда не "разрешить".
func (s *QuotaService) CheckAdmission(ctx context.Context, accountID uuid.UUID, candidateBytes int64) (bool, error) {
	if candidateBytes < 0 {
		return false, errNegativeSize
	}

	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, ErrAccountNotFound
		}
		return false, fmt.Errorf("failed to check admission: %w", err)
	}

	// Безлимитный тариф: проверка всегда проходит
	limitBytes, limited := account.LimitBytes()
	if !limited {
		return true, nil
	}

	// Граница включительная: ровно впритык — еще допустимо
	return account.UsedBytes+candidateBytes <= limitBytes, nil
}

// Reserve атомарно занимает deltaBytes в квоте аккаунта перед записью в
// хранилище. Проверка и инкремент — один условный UPDATE, поэтому
// конкурентные загрузки не могут совместно превысить лимит.
func (s *QuotaService) Reserve(ctx context.Context, accountID uuid.UUID, deltaBytes int64) error {
	if deltaBytes < 0 {
		return errNegativeSize
	}

	admitted, err := s.store.ReserveBytes(ctx, accountID, deltaBytes)
	if err != nil {
		return fmt.Errorf("failed to reserve quota: %w", err)
	}
	if !admitted {
		return ErrQuotaExceeded
	}

	return nil
}

// Release возвращает байты в квоту: откат неудавшейся загрузки либо
// окончательное удаление данных.
func (s *QuotaService) Release(ctx context.Context, accountID uuid.UUID, deltaBytes int64) error {
	if deltaBytes < 0 {
		return errNegativeSize
	}

	if err := s.store.ReleaseBytes(ctx, accountID, deltaBytes); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}

	return nil
}

// GetUsageSummary собирает сводку использования для клиента.
func (s *QuotaService) GetUsageSummary(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error) {
	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	summary := &domain.UsageSummary{
		QuotaLimitMb: account.QuotaLimitMb,
		UsedBytes:    account.UsedBytes,
		UsedMb:       float64(account.UsedBytes) / float64(domain.BytesPerMiB),
		UsedHuman:    humanize.IBytes(uint64(account.UsedBytes)),
	}

	limitBytes, limited := account.LimitBytes()
	if !limited {
		// Безлимит: процент не имеет смысла, показываем 0
		summary.Percent = 0
		return summary, nil
	}

	available := limitBytes - account.UsedBytes
	if available < 0 {
		available = 0
	}
	summary.AvailableBytes = &available

	// Использование может временно превышать квоту; шкалу обрезаем на 100
	percent := float64(account.UsedBytes) / float64(limitBytes) * 100
	summary.Percent = math.Min(100, percent)

	return summary, nil
}

// UpdateQuotaLimit меняет лимит аккаунта (в мебибайтах); nil снимает лимит.
func (s *QuotaService) UpdateQuotaLimit(ctx context.Context, accountID uuid.UUID, newLimitMb *int64) error {
	if newLimitMb != nil && *newLimitMb < 0 {
		return fmt.Errorf("new quota limit cannot be negative")
	}

	if err := s.store.UpdateQuotaLimit(ctx, accountID, newLimitMb); err != nil {
		return err
	}

	event := &domain.ActivityEvent{
		AccountID:  accountID,
		Kind:       domain.ActivityQuotaChange,
		OccurredAt: timeNow(),
	}
	if err := s.feed.Record(ctx, event); err != nil {
		s.log.Warn("failed to record quota change activity", zap.Error(err))
	}

	return nil
}

// RecalculateUsage сверяет счетчик used_bytes с фактическими версиями файлов.
func (s *QuotaService) RecalculateUsage(ctx context.Context, accountID uuid.UUID) error {
	return s.store.CalculateAndUpdateUsedBytes(ctx, accountID)
}
