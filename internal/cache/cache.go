// Package cache is the short-lived key/value store for merged market data.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/metrics"
)

// Cache stores opaque values with a TTL. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// MarketKey is the cache key for an asset's merged market data.
func MarketKey(address string) string {
	return fmt.Sprintf("token:%s:market", address)
}

// New returns a Redis cache when REDIS_URL is set, otherwise an in-process one.
func New(cfg *config.Config, log *logrus.Logger) (Cache, error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, using in-process cache")
		return NewMemory(), nil
	}
	c, err := NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to Redis cache")
	return c, nil
}

func record(op string, status string) {
	metrics.CacheOps.WithLabelValues(op, status).Inc()
}
