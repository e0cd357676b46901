package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nexodrive/internal/domain"
)

// Сколько последних событий храним на аккаунт.
const activityFeedCap = 100

// ActivityRepository хранит ленту недавней активности аккаунта в Redis —
// ограниченный список, новые события в голове.
type ActivityRepository struct {
	client *redis.Client
}

func NewActivityRepository(client *redis.Client) *ActivityRepository {
	return &ActivityRepository{client: client}
}

func feedKey(accountID uuid.UUID) string {
	return fmt.Sprintf("activity:%s", accountID)
}

// Record добавляет событие в голову ленты и обрезает хвост.
func (r *ActivityRepository) Record(ctx context.Context, event *domain.ActivityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	key := feedKey(event.AccountID)

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, activityFeedCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	return nil
}

// Recent возвращает до limit последних событий, новые первыми.
func (r *ActivityRepository) Recent(ctx context.Context, accountID uuid.UUID, limit int64) ([]domain.ActivityEvent, error) {
	if limit <= 0 || limit > activityFeedCap {
		limit = activityFeedCap
	}

	raw, err := r.client.LRange(ctx, feedKey(accountID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity feed: %w", err)
	}

	events := make([]domain.ActivityEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.ActivityEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			// Битые записи пропускаем, лента не критична для работы
			continue
		}
		events = append(events, event)
	}

	return events, nil
}
