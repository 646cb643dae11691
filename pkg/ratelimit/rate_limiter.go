package ratelimit

import (
	"context"
	"fmt"
	"time"

	"attendly/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault      RateLimitType = "default"
	RateLimitTypePublic       RateLimitType = "public"
	RateLimitTypeRegistration RateLimitType = "registration"
	RateLimitTypeAdmin        RateLimitType = "admin"
	RateLimitTypeHealth       RateLimitType = "health"
)

type Config struct {
	Enabled bool
	Window  time.Duration

	DefaultRequests      int
	PublicRequests       int
	RegistrationRequests int
	AdminRequests        int

	WhitelistedIPs []string
}

type RateLimiter struct {
	client    *redis.Client
	config    Config
	whitelist map[string]struct{}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime int64
}

// slidingWindow trims entries older than the window, then admits the request
// when fewer than limit entries remain. Returns {allowed, count}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]
	local ttl = tonumber(ARGV[5])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)
	if count >= limit then
		return {0, count}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, ttl)
	return {1, count + 1}
`)

func NewRateLimiter(client *redis.Client, config Config) *RateLimiter {
	whitelist := make(map[string]struct{}, len(config.WhitelistedIPs))
	for _, ip := range config.WhitelistedIPs {
		whitelist[ip] = struct{}{}
	}
	return &RateLimiter{client: client, config: config, whitelist: whitelist}
}

func (rl *RateLimiter) IsAllowed(ctx context.Context, ip string, limitType RateLimitType) (*Result, error) {
	limit := rl.getLimit(limitType)
	if !rl.config.Enabled || limit <= 0 || rl.isWhitelisted(ip) {
		return &Result{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	key := fmt.Sprintf("%s%s:%s", constants.RATE_LIMIT_PREFIX, limitType, ip)
	now := time.Now()
	windowStart := now.Add(-rl.config.Window)
	resetTime := now.Add(rl.config.Window).Unix()

	res, err := slidingWindow.Run(ctx, rl.client, []string{key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		uuid.NewString(),
		rl.config.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed := res[0] == 1
	remaining := limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}, nil
}

func (rl *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypeHealth:
		return 0
	case RateLimitTypePublic:
		return rl.config.PublicRequests
	case RateLimitTypeRegistration:
		return rl.config.RegistrationRequests
	case RateLimitTypeAdmin:
		return rl.config.AdminRequests
	default:
		return rl.config.DefaultRequests
	}
}

func (rl *RateLimiter) isWhitelisted(ip string) bool {
	_, ok := rl.whitelist[ip]
	return ok
}
