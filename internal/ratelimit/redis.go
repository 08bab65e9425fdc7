package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps fixed-window counters in Redis so limits hold across replicas
type RedisLimiter struct {
	client *redis.Client
	policy Policy
}

func NewRedisLimiter(client *redis.Client, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy}
}

func (l *RedisLimiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(purpose, ip)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return count >= l.policy.rule(purpose).MaxRequests, nil
}

func (l *RedisLimiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(purpose, ip)
	rule := l.policy.rule(purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	// First request opens the window
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}

func (l *RedisLimiter) CheckCooldown(ctx context.Context, key string) (bool, error) {
	if l.policy.Cooldown <= 0 {
		return false, nil
	}

	n, err := l.client.Exists(ctx, cooldownKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLimiter) SetCooldown(ctx context.Context, key string) error {
	if l.policy.Cooldown <= 0 {
		return nil
	}

	if err := l.client.Set(ctx, cooldownKey(key), 1, l.policy.Cooldown).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:%s:%s", purpose, ip)
}

func cooldownKey(key string) string {
	return fmt.Sprintf("cooldown:%s", key)
}
