// internal/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/common/metrics"
)

const keyPrefix = "ratelimit:"

// Limiter is a sliding-window rate limiter backed by a Redis sorted set per
// key. It protects the audit-creation endpoint from bursts; the durable
// per-IP daily cap lives in Postgres and is enforced separately.
//
// The limiter degrades open: if Redis is unreachable the request is allowed
// and the failure is logged, so a cache outage never blocks the funnel.
type Limiter struct {
	client *redis.Client
	scope  string
	limit  int
	window time.Duration
	log    logger.Logger

	now func() time.Time
}

func New(client *redis.Client, scope string, limit int, window time.Duration, log logger.Logger) *Limiter {
	return &Limiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: window,
		log:    log.WithFields(map[string]interface{}{"component": "ratelimit", "scope": scope}),
		now:    time.Now,
	}
}

// Allow records one attempt for key and reports whether it is within the
// window limit. Rejected attempts still count toward the window.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	now := l.now()
	windowStart := now.Add(-l.window)
	redisKey := keyPrefix + l.scope + ":" + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("rate limit check failed, allowing request", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return true
	}

	if countCmd.Val() > int64(l.limit) {
		metrics.RateLimitRejections.WithLabelValues(l.scope).Inc()
		return false
	}
	return true
}
