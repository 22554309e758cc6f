package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	alertsKeyPrefix     = "restock:alerts"
	alertsScanBatchSize = 100
)

// AlertQuery identifies one pipeline outcome. Two runs with the same query
// against the same model produce the same alerts.
type AlertQuery struct {
	Today       time.Time
	HorizonDays int
	Low         float64
	Medium      float64
	High        float64
	Artifact    string
}

// AlertCache stores successful alert lists. Failures are never cached.
type AlertCache interface {
	Get(ctx context.Context, q AlertQuery) ([]domain.Alert, bool, error)
	Set(ctx context.Context, q AlertQuery, alerts []domain.Alert) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisAlertCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAlertCache struct{}

// NewAlertCache returns a redis-backed cache, or a no-op one when caching is
// disabled.
func NewAlertCache(ctx context.Context, cfg config.CacheConfig) (AlertCache, error) {
	if !cfg.Enabled {
		return &noopAlertCache{}, nil
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newRedisAlertCache(client, ttlFromSeconds(cfg.AlertsTTLSeconds)), nil
}

func newRedisAlertCache(client *redis.Client, ttl time.Duration) *redisAlertCache {
	return &redisAlertCache{client: client, ttl: ttl}
}

func NewNoopAlertCache() AlertCache {
	return &noopAlertCache{}
}

func (c *redisAlertCache) Get(ctx context.Context, q AlertQuery) ([]domain.Alert, bool, error) {
	payload, err := c.client.Get(ctx, alertsKey(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var alerts []domain.Alert
	if err := json.Unmarshal(payload, &alerts); err != nil {
		return nil, false, fmt.Errorf("decode alerts cache: %w", err)
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}

	return alerts, true, nil
}

func (c *redisAlertCache) Set(ctx context.Context, q AlertQuery, alerts []domain.Alert) error {
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	payload, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("encode alerts cache: %w", err)
	}

	if err := c.client.Set(ctx, alertsKey(q), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAlertCache) InvalidateAll(ctx context.Context) error {
	_, err := deleteByPrefix(ctx, c.client, alertsKeyPrefix, alertsScanBatchSize)
	return err
}

func (c *redisAlertCache) Close() error {
	return c.client.Close()
}

func (n *noopAlertCache) Get(ctx context.Context, q AlertQuery) ([]domain.Alert, bool, error) {
	return nil, false, nil
}

func (n *noopAlertCache) Set(ctx context.Context, q AlertQuery, alerts []domain.Alert) error {
	return nil
}

func (n *noopAlertCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopAlertCache) Close() error {
	return nil
}

func alertsKey(q AlertQuery) string {
	return fmt.Sprintf("%s:%s:%s", alertsKeyPrefix, q.Today.Format("2006-01-02"), alertQueryHash(q))
}

func alertQueryHash(q AlertQuery) string {
	parts := []string{
		"date=" + q.Today.Format("2006-01-02"),
		fmt.Sprintf("horizon=%d", q.HorizonDays),
		fmt.Sprintf("low=%.4f", q.Low),
		fmt.Sprintf("medium=%.4f", q.Medium),
		fmt.Sprintf("high=%.4f", q.High),
		"artifact=" + strings.TrimSpace(q.Artifact),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
