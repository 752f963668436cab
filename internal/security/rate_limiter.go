package security

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// RateLimiter keeps one token bucket per client address. Buckets live in a
// go-cache instance so idle clients expire on their own.
type RateLimiter struct {
	limiters *cache.Cache
	config   config.RateLimitConfig

	stopOnce sync.Once
	stop     chan struct{}
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = constants.RateLimitMaxCacheSize
	}

	rl := &RateLimiter{
		limiters: cache.New(cfg.CleanupInterval, cfg.CleanupInterval*2),
		config:   cfg,
		stop:     make(chan struct{}),
	}

	if cfg.Enabled {
		go rl.periodicCleanup()
	}

	return rl
}

// Stop ends the background cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// periodicCleanup trims the cache when a flood of distinct clients pushes it
// past MaxCacheSize.
func (rl *RateLimiter) periodicCleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.trim()
		}
	}
}

func (rl *RateLimiter) trim() {
	maxSize := rl.config.MaxCacheSize
	currentSize := rl.limiters.ItemCount()
	if currentSize <= maxSize {
		return
	}

	// Remove an extra 10% so the next tick does not trim again immediately.
	toRemove := currentSize - maxSize + maxSize/10
	for key := range rl.limiters.Items() {
		if toRemove == 0 {
			return
		}
		rl.limiters.Delete(key)
		toRemove--
	}
}

func (rl *RateLimiter) limiter(identifier string) *rate.Limiter {
	if item, found := rl.limiters.Get(identifier); found {
		return item.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	if err := rl.limiters.Add(identifier, limiter, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if item, found := rl.limiters.Get(identifier); found {
			return item.(*rate.Limiter)
		}
	}
	return limiter
}

// Allow consumes one token for identifier and reports whether it was available.
func (rl *RateLimiter) Allow(identifier string) bool {
	if !rl.config.Enabled {
		return true
	}
	return rl.limiter(identifier).Allow()
}

// Remaining returns the whole tokens left for identifier.
func (rl *RateLimiter) Remaining(identifier string) int {
	tokens := rl.limiter(identifier).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

func (rl *RateLimiter) retryAfter() time.Duration {
	if rl.config.RequestsPerSecond <= 0 {
		return time.Second
	}
	wait := time.Duration(float64(time.Second) / float64(rl.config.RequestsPerSecond))
	if wait < time.Second {
		return time.Second
	}
	return wait
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		identifier := "ip:" + ClientIP(r)
		allowed := rl.Allow(identifier)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.BurstSize))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(identifier)))

		if !allowed {
			retryAfter := rl.retryAfter()
			w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
			w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			w.WriteHeader(http.StatusTooManyRequests)

			response := map[string]interface{}{
				"error":       constants.ErrorCodeRateLimitExceeded,
				"message":     fmt.Sprintf("Rate limit exceeded. Try again in %v", retryAfter),
				"retry_after": int(math.Ceil(retryAfter.Seconds())),
			}
			jsonResponse, _ := json.Marshal(response)
			_, _ = w.Write(jsonResponse)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the originating client address, preferring proxy headers
// over the socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get(constants.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get(constants.HeaderXRealIP); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
