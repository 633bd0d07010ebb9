package decoder

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// FragmentRateLimiter tracks per-source fragment counts in fixed windows.
// Windows follow the timestamps passed to Allow, so capture files replayed
// long after the fact are limited the same way as live traffic.
type FragmentRateLimiter struct {
	mu           sync.Mutex
	current      map[netip.Addr]*atomic.Int64 // source → fragment count in current window
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int64

	rejected atomic.Int64
}

// FragmentRateLimiterConfig configures per-source fragment rate limiting.
type FragmentRateLimiterConfig struct {
	MaxFragsPerIP   int           // Max fragments per source per window (0 = disabled)
	RateLimitWindow time.Duration // Window size (default 10s)
}

// NewFragmentRateLimiter creates a rate limiter. Returns nil if disabled (MaxFragsPerIP <= 0).
func NewFragmentRateLimiter(cfg FragmentRateLimiterConfig) *FragmentRateLimiter {
	if cfg.MaxFragsPerIP <= 0 {
		return nil
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = 10 * time.Second
	}
	return &FragmentRateLimiter{
		current:      make(map[netip.Addr]*atomic.Int64),
		windowSize:   cfg.RateLimitWindow,
		maxPerWindow: int64(cfg.MaxFragsPerIP),
	}
}

// Allow reports whether a fragment from src seen at now is within the limit.
func (l *FragmentRateLimiter) Allow(src netip.Addr, now time.Time) bool {
	l.mu.Lock()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.windowSize || now.Before(l.windowStart) {
		l.current = make(map[netip.Addr]*atomic.Int64)
		l.windowStart = now
	}

	counter, exists := l.current[src]
	if !exists {
		counter = &atomic.Int64{}
		l.current[src] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.maxPerWindow {
		l.rejected.Add(1)
		return false
	}
	return true
}

// Rejected returns the total number of rejected fragments.
func (l *FragmentRateLimiter) Rejected() int64 {
	return l.rejected.Load()
}

// ActiveIPs returns the number of distinct sources in the current window.
func (l *FragmentRateLimiter) ActiveIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}
