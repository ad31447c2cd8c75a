package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-identity flood prevention
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*identityLimit
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once
}

type identityLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	// PerSecond is the sustained command rate per identity
	PerSecond float64
	// Burst is how many commands may arrive back to back
	Burst int
	// IdleExpiry drops limiters of identities quiet for this long
	IdleExpiry time.Duration
}

// DefaultRateLimitConfig for chat commands
var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond:  4,
	Burst:      8,
	IdleExpiry: 5 * time.Minute,
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = DefaultRateLimitConfig.IdleExpiry
	}

	rl := &RateLimiter{
		limiters: make(map[string]*identityLimit),
		config:   cfg,
		stopChan: make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if an identity can execute a command
func (rl *RateLimiter) Allow(identity string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	entry, exists := rl.limiters[identity]
	if !exists {
		entry = &identityLimit{
			limiter: rate.NewLimiter(rate.Limit(rl.config.PerSecond), rl.config.Burst),
		}
		rl.limiters[identity] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// cleanup removes old entries every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.prune(time.Now())
		}
	}
}

func (rl *RateLimiter) prune(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.config.IdleExpiry)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}
