package server

import (
	"net/http"
	"sync"
	"time"

	"imagegen/internal/core"

	"github.com/gin-gonic/gin"
)

func (s *Server) maxBodySizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, core.MaxBodySize)
		c.Next()
	}
}

// rateLimiter allows rate requests per IP in fixed windows. Denied requests
// do not extend the window.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorInfo
	rate     int
	window   time.Duration
	cleanup  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type visitorInfo struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

func newRateLimiter(ratePerMinute int) *rateLimiter {
	if ratePerMinute <= 0 {
		ratePerMinute = core.DefaultRateLimit
	}
	rl := &rateLimiter{
		visitors: make(map[string]*visitorInfo),
		rate:     ratePerMinute,
		window:   core.RateLimitWindow,
		cleanup:  core.RateLimitCleanupEvery,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for ip, v := range rl.visitors {
				if now.Sub(v.windowStart) > rl.window {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.windowStart) > rl.window {
		rl.visitors[ip] = &visitorInfo{count: 1, windowStart: now, lastSeen: now}
		return true
	}
	v.lastSeen = now
	if v.count >= rl.rate {
		return false
	}
	v.count++
	return true
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !s.rateLimiter.allow(ip) {
			c.JSON(http.StatusTooManyRequests, core.ErrorResponse{Error: "rate limit exceeded", Kind: string(core.KindTooManyRequests)})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowAll := len(s.config.CORSAllowOrigins) == 0
	allowed := make(map[string]struct{}, len(s.config.CORSAllowOrigins))
	for _, origin := range s.config.CORSAllowOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			c.Header("Vary", "Origin")
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					c.Header("Access-Control-Allow-Origin", origin)
				}
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+core.HeaderAccessCode)
		c.Header("Access-Control-Max-Age", core.CORSMaxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
