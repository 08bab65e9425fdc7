package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter enforces the policy with in-process token buckets.
// Suitable for a single replica or local development.
type LocalLimiter struct {
	policy    Policy
	mu        sync.Mutex
	buckets   map[string]*bucket
	cooldowns map[string]time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(policy Policy) *LocalLimiter {
	return &LocalLimiter{
		policy:    policy,
		buckets:   make(map[string]*bucket),
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (l *LocalLimiter) CheckIPRateLimitWithPurpose(_ context.Context, ip, purpose string) (bool, error) {
	now := l.now()
	b := l.limiterFor(ipKey(purpose, ip), l.policy.rule(purpose), now)
	return b.TokensAt(now) < 1, nil
}

func (l *LocalLimiter) RecordIPRequestWithPurpose(_ context.Context, ip, purpose string) error {
	now := l.now()
	b := l.limiterFor(ipKey(purpose, ip), l.policy.rule(purpose), now)
	b.AllowN(now, 1)
	return nil
}

func (l *LocalLimiter) CheckCooldown(_ context.Context, key string) (bool, error) {
	if l.policy.Cooldown <= 0 {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.cooldowns[key]
	return ok && l.now().Before(until), nil
}

func (l *LocalLimiter) SetCooldown(_ context.Context, key string) error {
	if l.policy.Cooldown <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cooldowns[key] = l.now().Add(l.policy.Cooldown)
	return nil
}

func (l *LocalLimiter) limiterFor(key string, rule Rule, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	limit := rate.Limit(float64(rule.MaxRequests) / rule.Window.Seconds())
	b := &bucket{limiter: rate.NewLimiter(limit, rule.MaxRequests), lastSeen: now}
	l.buckets[key] = b
	l.cleanupLocked(now, rule.Window)
	return b.limiter
}

func (l *LocalLimiter) cleanupLocked(now time.Time, window time.Duration) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > window {
			delete(l.buckets, key)
		}
	}
	for key, until := range l.cooldowns {
		if now.After(until) {
			delete(l.cooldowns, key)
		}
	}
}
