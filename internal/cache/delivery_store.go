package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const deliveryKeyPrefix = "webhook:delivery:"

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DeliveryStore deduplicates webhook deliveries across instances using
// Redis. Platforms redeliver webhooks on their own schedule; marking each
// delivery id with SETNX keeps a redelivered event from being processed
// twice. Without Redis the store is disabled and every delivery looks new,
// which degrades to the pre-dedup behavior rather than blocking ingress.
type DeliveryStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewDeliveryStore connects to Redis and returns a dedup store. An empty
// host yields a disabled store and no error.
func NewDeliveryStore(cfg Config, ttl time.Duration, logger *zap.Logger) (*DeliveryStore, error) {
	s := &DeliveryStore{logger: logger, ttl: ttl}
	if cfg.Host == "" {
		logger.Warn("redis not configured, webhook delivery dedup disabled")
		return s, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s.client = client
	return s, nil
}

// NewDeliveryStoreWithClient wraps an existing client. Used in tests.
func NewDeliveryStoreWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *DeliveryStore {
	return &DeliveryStore{client: client, logger: logger, ttl: ttl}
}

// Enabled reports whether dedup is active.
func (s *DeliveryStore) Enabled() bool {
	return s.client != nil
}

// MarkSeen records a delivery id and reports whether it had been seen
// before. Redis errors are treated as "not seen": a flaky cache must not
// drop live webhook traffic.
func (s *DeliveryStore) MarkSeen(ctx context.Context, deliveryID string) bool {
	if s.client == nil || deliveryID == "" {
		return false
	}

	fresh, err := s.client.SetNX(ctx, deliveryKeyPrefix+deliveryID, "1", s.ttl).Result()
	if err != nil {
		s.logger.Warn("delivery dedup check failed, treating as new",
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
		return false
	}
	return !fresh
}

// Close releases the Redis connection.
func (s *DeliveryStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
