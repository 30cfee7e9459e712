package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/landchat/internal/metrics"
)

const (
	keyPrefix          = "landchat:"
	violationThreshold = 10
	autoBlockDuration  = 24 * time.Hour
)

// RateLimit defines limits for one route.
type RateLimit struct {
	Method   string
	Prefix   string
	Name     string // metrics label
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// DefaultLimits are checked in order; the first matching rule applies.
var DefaultLimits = []RateLimit{
	{http.MethodPost, "/api/v1/messages", "send_message", 60, time.Minute, tokenOrIPKey},
	{http.MethodGet, "/api/v1/messages/chats", "chats", 60, time.Minute, tokenOrIPKey},
	{http.MethodGet, "/api/v1/messages/", "history", 120, time.Minute, ipKey},
	{http.MethodGet, "/api/v1/users/admin", "admin_profile", 60, time.Minute, ipKey},
	{http.MethodGet, "/socket", "socket", 30, time.Minute, ipKey},
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string    // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool        // Block IPs after repeated violations
	Limits           []RateLimit // nil uses DefaultLimits
}

// RateLimiter implements fixed window rate limiting backed by Redis.
type RateLimiter struct {
	client           *redis.Client
	limits           []RateLimit
	blocker          *IPBlocker
	logger           zerolog.Logger
	whitelist        []*net.IPNet
	whitelistIPs     map[string]bool
	autoBlockEnabled bool
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	limits := cfg.Limits
	if limits == nil {
		limits = DefaultLimits
	}

	rl := &RateLimiter{
		client:           client,
		limits:           limits,
		blocker:          NewIPBlocker(client),
		logger:           logger,
		whitelistIPs:     make(map[string]bool),
		autoBlockEnabled: cfg.AutoBlockEnabled,
	}

	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelist = append(rl.whitelist, ipNet)
		} else {
			rl.whitelistIPs[entry] = true
		}
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	if rl.whitelistIPs[ipStr] {
		return true
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

func ipKey(r *http.Request) string {
	return keyPrefix + "ratelimit:ip:" + RealIP(r)
}

// tokenOrIPKey keys authenticated callers by a hash of their credential so
// several users behind one NAT do not share a bucket.
func tokenOrIPKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ipKey(r)
	}
	sum := sha256.Sum256([]byte(header))
	return keyPrefix + "ratelimit:token:" + hex.EncodeToString(sum[:16])
}

// RealIP returns the client address of the connection. Forwarding headers
// are only honoured when the router runs chi's RealIP middleware in front,
// which rewrites RemoteAddr.
func RealIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CheckAndIncrement counts a request against key's current window.
// Returns (allowed, remaining, resetAt). Redis errors fail open.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	now := time.Now()
	windowSecs := int64(window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	bucket := now.Unix() / windowSecs
	resetAt := time.Unix((bucket+1)*windowSecs, 0)
	windowKey := fmt.Sprintf("%s:%d", key, bucket)

	start := time.Now()
	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window*2)
	_, err := pipe.Exec(ctx)
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
		return true, limit, resetAt
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= limit, remaining, resetAt
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.blocker.IsBlocked(r.Context(), ip) {
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limit.KeyFunc(r)
		allowed, remaining, resetAt := rl.CheckAndIncrement(r.Context(), key, limit.Requests, limit.Window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			metrics.RateLimitHits.WithLabelValues(limit.Name).Inc()

			rl.trackViolation(r.Context(), ip)

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	for i := range rl.limits {
		l := &rl.limits[i]
		if r.Method == l.Method && strings.HasPrefix(r.URL.Path, l.Prefix) {
			return l
		}
	}
	return nil
}

// trackViolation counts rate limit violations and blocks repeat offenders.
func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	key := keyPrefix + "violations:ip:" + ip
	count, _ := rl.client.Incr(ctx, key).Result()
	rl.client.Expire(ctx, key, time.Hour)

	if count >= violationThreshold {
		rl.blocker.Block(ctx, ip, autoBlockDuration, "repeated rate limit violations")
		rl.logger.Warn().
			Str("type", "security").
			Str("event", "ip_auto_blocked").
			Str("ip", ip).
			Int64("violations", count).
			Msg("IP auto-blocked for repeated violations")
	}
}

// IPBlocker manages temporary IP blocks.
type IPBlocker struct {
	client *redis.Client
}

func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	exists, _ := b.client.Exists(ctx, blockKey(ip)).Result()
	return exists > 0
}

func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.client.Set(ctx, blockKey(ip), reason, duration)
}

func (b *IPBlocker) Unblock(ctx context.Context, ip string) {
	b.client.Del(ctx, blockKey(ip))
}

func blockKey(ip string) string {
	return keyPrefix + "blocked:ip:" + ip
}
