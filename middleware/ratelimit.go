package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"Kendalinet-Layer/models"
)

// RateLimiter keeps one token bucket per client IP and drops buckets that
// have been idle longer than staleAfter.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientEntry
	rate       rate.Limit
	burst      int
	staleAfter time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(requestsPerMinute int, cleanupInterval, staleAfter time.Duration) (*RateLimiter, error) {
	if requestsPerMinute <= 0 {
		return nil, errors.New("ratelimit: requests_per_minute must be positive")
	}
	if cleanupInterval <= 0 || staleAfter <= 0 {
		return nil, errors.New("ratelimit: cleanup_interval and stale_after must be positive")
	}

	l := &RateLimiter{
		clients:    make(map[string]*clientEntry),
		rate:       rate.Limit(float64(requestsPerMinute) / time.Minute.Seconds()),
		burst:      requestsPerMinute,
		staleAfter: staleAfter,
		done:       make(chan struct{}),
	}
	go l.cleanupLoop(cleanupInterval)
	return l, nil
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[ip]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (l *RateLimiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

// RetryAfter is the number of whole seconds until ip gets its next token.
func (l *RateLimiter) RetryAfter(ip string) int {
	r := l.get(ip).Reserve()
	delay := r.Delay()
	r.Cancel()
	return int(math.Ceil(delay.Seconds()))
}

func (l *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.done:
			return
		}
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for ip, e := range l.clients {
		if now.Sub(e.lastSeen) > l.staleAfter {
			delete(l.clients, ip)
		}
	}
}

func (l *RateLimiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Middleware limits mutating requests only.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !l.Allow(ip) {
			retry := l.RetryAfter(ip)
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ApiResponse{
				Success: false,
				Error:   "Terlalu banyak request, coba lagi dalam " + strconv.Itoa(retry) + " detik",
			})
			return
		}
		c.Next()
	}
}
