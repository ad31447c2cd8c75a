package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"powpow/internal/config"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the limits applied at the HTTP edge, before a
// message reaches the command queue
type RateLimitConfig struct {
	RequestsPerSecond float64       // Every route, per client IP
	Burst             int           // Burst per client IP
	MessagesPerSecond float64       // POST /api/chat/message, per chat identity
	MessageBurst      int           // Burst per chat identity
	CleanupInterval   time.Duration // How often idle buckets are dropped
}

// RateLimitFromConfig derives the edge limits from the server settings
func RateLimitFromConfig(cfg config.ServerConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
		CleanupInterval:   5 * time.Minute,
	}
}

// DefaultRateLimitConfig follows config.DefaultServer
var DefaultRateLimitConfig = RateLimitFromConfig(config.DefaultServer())

// withDefaults fills zero fields from DefaultRateLimitConfig
func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		c.RequestsPerSecond, c.Burst = DefaultRateLimitConfig.RequestsPerSecond, DefaultRateLimitConfig.Burst
	}
	if c.MessagesPerSecond <= 0 || c.MessageBurst <= 0 {
		c.MessagesPerSecond, c.MessageBurst = DefaultRateLimitConfig.MessagesPerSecond, DefaultRateLimitConfig.MessageBurst
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	return c
}

// bucket is one key's token bucket
type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// bucketSet holds one token bucket per key
type bucketSet struct {
	buckets sync.Map // map[string]*bucket
	limit   rate.Limit
	burst   int
}

func newBucketSet(perSecond float64, burst int) *bucketSet {
	return &bucketSet{limit: rate.Limit(perSecond), burst: burst}
}

func (s *bucketSet) allow(key string) bool {
	now := time.Now().UnixNano()

	if v, ok := s.buckets.Load(key); ok {
		b := v.(*bucket)
		b.lastSeen.Store(now)
		return b.limiter.Allow()
	}

	b := &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
	b.lastSeen.Store(now)
	actual, _ := s.buckets.LoadOrStore(key, b)
	return actual.(*bucket).limiter.Allow()
}

// prune drops buckets unused since cutoff
func (s *bucketSet) prune(cutoff int64) {
	s.buckets.Range(func(key, value interface{}) bool {
		if value.(*bucket).lastSeen.Load() < cutoff {
			s.buckets.Delete(key)
		}
		return true
	})
}

// LimiterStats reports edge rate limiting
type LimiterStats struct {
	Allowed          uint64 `json:"allowed"`
	RejectedIP       uint64 `json:"rejectedIp"`
	RejectedIdentity uint64 `json:"rejectedIdentity"`
}

// RequestLimiter throttles HTTP traffic per client IP on every route and
// per chat identity on the webhook. The identity bucket keeps one sender
// behind a shared bridge IP from filling its command queue shard.
type RequestLimiter struct {
	ips        *bucketSet
	identities *bucketSet
	cleanup    time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once

	allowed          atomic.Uint64
	rejectedIP       atomic.Uint64
	rejectedIdentity atomic.Uint64
}

// NewRequestLimiter creates a limiter. Zero fields of cfg fall back to
// DefaultRateLimitConfig.
func NewRequestLimiter(cfg RateLimitConfig) *RequestLimiter {
	cfg = cfg.withDefaults()

	rl := &RequestLimiter{
		ips:        newBucketSet(cfg.RequestsPerSecond, cfg.Burst),
		identities: newBucketSet(cfg.MessagesPerSecond, cfg.MessageBurst),
		cleanup:    cfg.CleanupInterval,
		stopChan:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the cleanup goroutine
func (rl *RequestLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *RequestLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.cleanup * 2).UnixNano()
			rl.ips.prune(cutoff)
			rl.identities.prune(cutoff)
		}
	}
}

// AllowIP reports whether a request from ip may proceed
func (rl *RequestLimiter) AllowIP(ip string) bool {
	if rl.ips.allow(ip) {
		rl.allowed.Add(1)
		return true
	}
	rl.rejectedIP.Add(1)
	return false
}

// AllowIdentity reports whether a webhook message from identity may be queued
func (rl *RequestLimiter) AllowIdentity(identity string) bool {
	if rl.identities.allow(identity) {
		return true
	}
	rl.rejectedIdentity.Add(1)
	return false
}

// Middleware rejects requests over the per-IP limit with 429
func (rl *RequestLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowIP(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the limiter counters
func (rl *RequestLimiter) Stats() LimiterStats {
	return LimiterStats{
		Allowed:          rl.allowed.Load(),
		RejectedIP:       rl.rejectedIP.Load(),
		RejectedIdentity: rl.rejectedIdentity.Load(),
	}
}

// GetClientIP extracts the client IP from an HTTP request
// Handles X-Forwarded-For header for proxied requests
func GetClientIP(r *http.Request) string {
	// CAUTION: forwarded headers can be spoofed if not behind a trusted proxy
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ConnectionStats reports WebSocket connection limiting
type ConnectionStats struct {
	Open     int    `json:"open"`
	MaxTotal int    `json:"maxTotal"`
	MaxPerIP int    `json:"maxPerIp"`
	Rejected uint64 `json:"rejected"`
}

// ConnectionLimiter caps open WebSocket connections in total and per
// client IP. A slot is held from upgrade until the connection is dropped,
// including connections that were replaced by a newer one for the same
// identity.
type ConnectionLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	open     int
	maxTotal int
	maxPerIP int

	rejected atomic.Uint64
}

// NewConnectionLimiter creates a limiter. Non-positive limits fall back to
// config.DefaultServer.
func NewConnectionLimiter(maxTotal, maxPerIP int) *ConnectionLimiter {
	def := config.DefaultServer()
	if maxTotal <= 0 {
		maxTotal = def.MaxConnections
	}
	if maxPerIP <= 0 {
		maxPerIP = def.MaxConnectionsPerIP
	}

	return &ConnectionLimiter{
		perIP:    make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

// Acquire reserves a slot for ip. On rejection reason names the limit hit.
func (cl *ConnectionLimiter) Acquire(ip string) (reason string, ok bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	switch {
	case cl.open >= cl.maxTotal:
		reason = "ws_total_limit"
	case cl.perIP[ip] >= cl.maxPerIP:
		reason = "ws_ip_limit"
	default:
		cl.open++
		cl.perIP[ip]++
		return "", true
	}

	cl.rejected.Add(1)
	return reason, false
}

// Release frees a slot taken by Acquire
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n, ok := cl.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(cl.perIP, ip)
	} else {
		cl.perIP[ip] = n - 1
	}
	cl.open--
}

// Stats returns the current connection counts
func (cl *ConnectionLimiter) Stats() ConnectionStats {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return ConnectionStats{
		Open:     cl.open,
		MaxTotal: cl.maxTotal,
		MaxPerIP: cl.maxPerIP,
		Rejected: cl.rejected.Load(),
	}
}

// DefaultAllowedOrigins are the origins accepted when none are configured
var DefaultAllowedOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
}

// IsAllowedOrigin checks an Origin header against the allowed list.
// An empty allowed list means DefaultAllowedOrigins. Entries of the form
// "https://*.example.com" match any subdomain.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}

	// Allow localhost with any port
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}

	if len(allowed) == 0 {
		allowed = DefaultAllowedOrigins
	}
	for _, a := range allowed {
		if a == "*" || origin == a {
			return true
		}
		if prefix, suffix, ok := strings.Cut(a, "*"); ok &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}

	return false
}
