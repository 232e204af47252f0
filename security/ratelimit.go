package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limiter defaults
const (
	DefaultRateLimitMaxEntries      = 10000
	DefaultRateLimitCleanupInterval = 5 * time.Minute
	DefaultRateLimitIdleTimeout     = 30 * time.Minute
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate per identifier
	RequestsPerSecond float64

	// Burst is the bucket size per identifier
	Burst int

	// MaxEntries bounds the number of tracked identifiers (0 = unlimited)
	// Default: 10000
	MaxEntries int

	// CleanupInterval is how often idle identifiers are dropped
	// Default: 5 minutes
	CleanupInterval time.Duration

	// IdleTimeout is how long an identifier may stay unused before it is dropped
	// Default: 30 minutes
	IdleTimeout time.Duration

	// Now supplies the current time
	// Default: time.Now
	Now func() time.Time
}

type bucket struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per identifier with token buckets.
// The least recently used identifier is evicted once MaxEntries is reached.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	lru     *list.List

	limit       rate.Limit
	burst       int
	maxEntries  int
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once

	evictions int64
	cleanups  int64
}

// NewRateLimiter creates a rate limiter with default bounds.
func NewRateLimiter(requestsPerSecond float64, burst int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(RateLimiterConfig{
		RequestsPerSecond: requestsPerSecond,
		Burst:             burst,
	}, logger)
}

// NewRateLimiterWithConfig creates a rate limiter and starts its cleanup loop.
// Call Stop to release it.
func NewRateLimiterWithConfig(cfg RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries < 0 {
		logger.Warn("Invalid rate limiter max entries, using default",
			"max_entries", cfg.MaxEntries,
			"default", DefaultRateLimitMaxEntries)
		cfg.MaxEntries = DefaultRateLimitMaxEntries
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultRateLimitMaxEntries
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitCleanupInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultRateLimitIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	rl := &RateLimiter{
		buckets:     make(map[string]*list.Element),
		lru:         list.New(),
		limit:       rate.Limit(cfg.RequestsPerSecond),
		burst:       cfg.Burst,
		maxEntries:  cfg.MaxEntries,
		idleTimeout: cfg.IdleTimeout,
		now:         cfg.Now,
		logger:      logger,
		stop:        make(chan struct{}),
	}

	go rl.cleanupLoop(cfg.CleanupInterval)

	return rl
}

// Allow reports whether one more request from identifier fits its bucket.
func (rl *RateLimiter) Allow(identifier string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.buckets[identifier]; ok {
		rl.lru.MoveToFront(elem)
		b := elem.Value.(*bucket)
		b.lastAccess = now
		return b.limiter.AllowN(now, 1)
	}

	if rl.maxEntries > 0 && len(rl.buckets) >= rl.maxEntries {
		rl.evictOldest()
	}

	b := &bucket{
		identifier: identifier,
		limiter:    rate.NewLimiter(rl.limit, rl.burst),
		lastAccess: now,
	}
	rl.buckets[identifier] = rl.lru.PushFront(b)

	return b.limiter.AllowN(now, 1)
}

// evictOldest drops the least recently used bucket. Caller holds mu.
func (rl *RateLimiter) evictOldest() {
	elem := rl.lru.Back()
	if elem == nil {
		return
	}
	b := elem.Value.(*bucket)
	delete(rl.buckets, b.identifier)
	rl.lru.Remove(elem)
	rl.evictions++

	rl.logger.Debug("Rate limiter LRU eviction",
		"identifier", b.identifier,
		"total_evictions", rl.evictions,
		"current_entries", len(rl.buckets))
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Cleanup drops buckets idle for longer than the idle timeout.
func (rl *RateLimiter) Cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	// The list is ordered by access time, so idle buckets sit at the back.
	for elem := rl.lru.Back(); elem != nil; {
		b := elem.Value.(*bucket)
		if now.Sub(b.lastAccess) <= rl.idleTimeout {
			break
		}
		prev := elem.Prev()
		delete(rl.buckets, b.identifier)
		rl.lru.Remove(elem)
		removed++
		elem = prev
	}

	if removed > 0 {
		rl.cleanups++
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.buckets),
			"total_cleanups", rl.cleanups)
	}
}

// Stop stops the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Stats holds rate limiter statistics for monitoring
type Stats struct {
	CurrentEntries int     // Current number of tracked identifiers
	MaxEntries     int     // Maximum allowed entries
	TotalEvictions int64   // Total number of LRU evictions
	TotalCleanups  int64   // Total number of cleanup passes that removed entries
	MemoryPressure float64 // Percentage of max capacity used (0-100)
}

// GetStats returns current rate limiter statistics.
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := Stats{
		CurrentEntries: len(rl.buckets),
		MaxEntries:     rl.maxEntries,
		TotalEvictions: rl.evictions,
		TotalCleanups:  rl.cleanups,
	}
	if rl.maxEntries > 0 {
		stats.MemoryPressure = float64(stats.CurrentEntries) / float64(rl.maxEntries) * 100.0
	}
	return stats
}
