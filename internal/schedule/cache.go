package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-widget/internal/availability"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

const defaultCacheTTL = 5 * time.Minute

// CachedSource keeps recently read schedules in Redis. Days without a
// schedule are cached too so an OFF day does not hit the database each time.
type CachedSource struct {
	next   Source
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedSource(next Source, rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedSource {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(providerID, date string) string {
	return fmt.Sprintf("widget:schedule:%s:%s", providerID, date)
}

// DaySchedule implements Source. Redis failures fall through to the wrapped source.
func (c *CachedSource) DaySchedule(ctx context.Context, providerID, date string) (*availability.DaySchedule, error) {
	key := cacheKey(providerID, date)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached *availability.DaySchedule
		if jerr := json.Unmarshal(data, &cached); jerr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding corrupt schedule cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("schedule cache read failed", "key", key, "error", err)
	}

	schedule, err := c.next.DaySchedule(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(schedule)
	if err != nil {
		return schedule, nil
	}
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("schedule cache write failed", "key", key, "error", err)
	}
	return schedule, nil
}

// Invalidate drops the cached schedule for one provider date.
func (c *CachedSource) Invalidate(ctx context.Context, providerID, date string) error {
	if err := c.rdb.Del(ctx, cacheKey(providerID, date)).Err(); err != nil {
		return fmt.Errorf("schedule: invalidate %s %s: %w", providerID, date, err)
	}
	return nil
}
