package ratelimit

import (
	"context"
	"time"
)

// Rule bounds how many requests one IP may make for a purpose within Window
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Policy configures a limiter. Purposes missing from Rules use Default.
// A zero Cooldown disables per-address cooldowns.
type Policy struct {
	Default  Rule
	Rules    map[string]Rule
	Cooldown time.Duration
}

// DefaultPolicy allows 10 requests per 15 minutes per IP and purpose
func DefaultPolicy(cooldown time.Duration) Policy {
	return Policy{
		Default: Rule{MaxRequests: 10, Window: 15 * time.Minute},
		Rules: map[string]Rule{
			"login":  {MaxRequests: 20, Window: 15 * time.Minute},
			"google": {MaxRequests: 20, Window: 15 * time.Minute},
		},
		Cooldown: cooldown,
	}
}

func (p Policy) rule(purpose string) Rule {
	if r, ok := p.Rules[purpose]; ok {
		return r
	}
	return p.Default
}

// Limiter is implemented by RedisLimiter and LocalLimiter
type Limiter interface {
	// CheckIPRateLimitWithPurpose reports whether ip has exhausted its budget for purpose
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	// CheckCooldown reports whether key is still cooling down
	CheckCooldown(ctx context.Context, key string) (bool, error)
	SetCooldown(ctx context.Context, key string) error
}
