package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// workListCache stores work list pages per user. Every write bumps the user's generation,
// which makes all previously cached pages of that user unreachable until they expire.
type workListCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func newWorkListCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *workListCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &workListCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "work_list_cache").Logger(),
	}
}

func generationKey(userID uint) string {
	return fmt.Sprintf("works:gen:%d", userID)
}

func (c *workListCache) generation(ctx context.Context, userID uint) (int64, error) {
	value, err := c.client.Get(ctx, generationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

func (c *workListCache) key(ctx context.Context, scope string, userID uint, filter string) (string, error) {
	generation, err := c.generation(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("works:list:%s:%d:%d:%s", scope, userID, generation, filter), nil
}

// get fills dest from the cache and reports whether it was a hit.
func (c *workListCache) get(ctx context.Context, scope string, userID uint, filter string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	key, err := c.key(ctx, scope, userID, filter)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read work list generation")
		observability.WorkListCache().WithLabelValues("error").Inc()
		return false
	}

	cached, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read work list cache")
			observability.WorkListCache().WithLabelValues("error").Inc()
			return false
		}
		observability.WorkListCache().WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal([]byte(cached), dest); err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode work list cache")
		observability.WorkListCache().WithLabelValues("error").Inc()
		return false
	}

	observability.WorkListCache().WithLabelValues("hit").Inc()
	return true
}

func (c *workListCache) set(ctx context.Context, scope string, userID uint, filter string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}

	key, err := c.key(ctx, scope, userID, filter)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read work list generation")
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode work list cache")
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store work list cache")
	}
}

// invalidate bumps the generation of every user whose lists may show the written work.
func (c *workListCache) invalidate(ctx context.Context, userIDs ...uint) {
	if c == nil || c.client == nil {
		return
	}

	seen := make(map[uint]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if userID == 0 {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}

		if err := c.client.Incr(ctx, generationKey(userID)).Err(); err != nil {
			c.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to invalidate work list cache")
		}
	}
}
