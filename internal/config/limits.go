package config

import (
	"strings"
	"time"
)

// RateLimitConfig configures the Redis token bucket limiter.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip, user, ip_user_route
	Prefix         string
}

// CacheConfig configures the Redis response cache used on the public
// room listing.  Methods lists the cacheable HTTP methods.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // route_query or full_url
	Prefix       string
	MaxBodyBytes int
}

func (e *env) rateLimit() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        e.bool("RATE_LIMIT_ENABLED", true),
		Capacity:       e.int("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   e.int("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: e.dur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            e.dur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    e.str("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         e.str("RATE_LIMIT_PREFIX", "rl"),
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}

func (e *env) cache() CacheConfig {
	methods := map[string]bool{}
	for _, m := range e.list("CACHE_METHODS") {
		methods[strings.ToUpper(m)] = true
	}
	if len(methods) == 0 {
		methods["GET"] = true
	}
	return CacheConfig{
		Enabled:      e.bool("CACHE_ENABLED", true),
		Methods:      methods,
		TTL:          e.dur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  e.str("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       e.str("CACHE_PREFIX", "cache"),
		MaxBodyBytes: e.int("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
