package resilience

import (
	"sync"
	"time"
)

// LimiterConfig configures a token-bucket rate limiter.
type LimiterConfig struct {
	// Rate is the sustained number of requests allowed per second.
	Rate float64

	// Burst is the bucket capacity; short spikes up to Burst pass even
	// when the sustained rate is exceeded. Defaults to Rate.
	Burst int

	// OnLimit is called whenever a request is rejected.
	OnLimit func()
}

// Limiter is a token-bucket rate limiter. The bucket refills
// continuously at the configured rate and callers consume one token per
// request.
type Limiter struct {
	cfg LimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewLimiter creates a rate limiter.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 10.0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.Rate)
	}
	return &Limiter{
		cfg:        cfg,
		tokens:     float64(cfg.Burst),
		lastRefill: time.Now(),
	}
}

// Allow reports whether one request may proceed now.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN reports whether n requests may proceed now.
func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}
	if l.cfg.OnLimit != nil {
		l.cfg.OnLimit()
	}
	return false
}

// Tokens returns the currently available token count.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * l.cfg.Rate
	if l.tokens > float64(l.cfg.Burst) {
		l.tokens = float64(l.cfg.Burst)
	}
}
