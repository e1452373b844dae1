package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps the full-day open-slot list per (provider, date).
// Cached entries exclude the same-day cutoff, which callers apply from their
// own clock, so an entry stays valid for the whole day until a mutation
// invalidates it. All failures degrade to a cache miss.
type AvailabilityCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

type dayEntry struct {
	WorkingDay bool     `json:"working_day"`
	Slots      []string `json:"slots"`
}

func Dial(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func New(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *AvailabilityCache {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AvailabilityCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With(slog.String("component", "cache.availability")),
	}
}

func (c *AvailabilityCache) GetDay(ctx context.Context, providerID, date string) ([]string, bool, bool) {
	key, err := c.dayKey(ctx, providerID, date)
	if err != nil {
		c.log.Debug("cache read skipped", slog.Any("err", err))
		return nil, false, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache read failed", slog.Any("err", err))
		}
		return nil, false, false
	}
	var entry dayEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Debug("cache entry malformed", slog.String("key", key), slog.Any("err", err))
		return nil, false, false
	}
	return entry.Slots, entry.WorkingDay, true
}

func (c *AvailabilityCache) SetDay(ctx context.Context, providerID, date string, workingDay bool, slots []string) {
	key, err := c.dayKey(ctx, providerID, date)
	if err != nil {
		return
	}
	raw, err := json.Marshal(dayEntry{WorkingDay: workingDay, Slots: slots})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug("cache write failed", slog.String("key", key), slog.Any("err", err))
	}
}

func (c *AvailabilityCache) InvalidateDay(ctx context.Context, providerID, date string) {
	key, err := c.dayKey(ctx, providerID, date)
	if err != nil {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Debug("cache invalidate failed", slog.String("key", key), slog.Any("err", err))
	}
}

// InvalidateProvider bumps the provider's version, orphaning every cached
// day at once. Orphaned keys expire via TTL.
func (c *AvailabilityCache) InvalidateProvider(ctx context.Context, providerID string) {
	if err := c.rdb.Incr(ctx, versionKey(providerID)).Err(); err != nil {
		c.log.Debug("cache version bump failed", slog.String("provider_id", providerID), slog.Any("err", err))
	}
}

func (c *AvailabilityCache) dayKey(ctx context.Context, providerID, date string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(providerID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("avail:%d:%s:%s", ver, providerID, date), nil
}

func versionKey(providerID string) string {
	return "avail:ver:" + providerID
}
