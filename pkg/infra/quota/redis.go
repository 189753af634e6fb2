package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	BalanceKeyPattern = "siu:balance:%s"
	UsedKeyPattern    = "siu:used:%s"

	usedKeyTTL = 35 * 24 * time.Hour
)

type redisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisStore builds a Store on a shared Redis balance counter. DECRBY is
// atomic, so concurrent reservations for the same tenant cannot under-count;
// an overdrawn reservation is refunded immediately rather than held.
func NewRedisStore(logger *logrus.Logger, client *redis.Client) Store {
	return &redisStore{
		client: client,
		logger: logger,
	}
}

func (s *redisStore) Reserve(ctx context.Context, tenantID string, units int64) error {
	key := fmt.Sprintf(BalanceKeyPattern, tenantID)

	remaining, err := s.client.DecrBy(ctx, key, units).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve %d units for tenant %s: %w", units, tenantID, err)
	}
	if remaining < 0 {
		if err := s.client.IncrBy(ctx, key, units).Err(); err != nil {
			s.logger.WithError(err).WithField("tenant_id", tenantID).
				Error("failed to refund overdrawn reservation")
		}
		return safety.ErrQuotaExceeded
	}
	return nil
}

func (s *redisStore) Commit(ctx context.Context, tenantID string, units int64) error {
	key := fmt.Sprintf(UsedKeyPattern, tenantID)

	pipe := s.client.TxPipeline()
	pipe.IncrBy(ctx, key, units)
	pipe.Expire(ctx, key, usedKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit %d units for tenant %s: %w", units, tenantID, err)
	}
	return nil
}

func (s *redisStore) Release(ctx context.Context, tenantID string, units int64) error {
	key := fmt.Sprintf(BalanceKeyPattern, tenantID)
	if err := s.client.IncrBy(ctx, key, units).Err(); err != nil {
		return fmt.Errorf("failed to release %d units for tenant %s: %w", units, tenantID, err)
	}
	return nil
}
