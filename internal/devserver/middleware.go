// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ctxUser is the gin context key holding the authenticated Claims.
const ctxUser = "devserver.user"

// detail writes the error body shape the client expects.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// ============================================================================
// AUTH
// ============================================================================

// requireAuth accepts a valid access token in the Authorization header.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		claims, err := s.tokens.verify(strings.TrimSpace(token), tokenAccess, s.now())
		if err != nil {
			msg := "Given token not valid for any token type"
			if errors.Is(err, ErrTokenExpired) {
				msg = "Token is expired"
			}
			detail(c, http.StatusUnauthorized, msg)
			return
		}
		c.Set(ctxUser, claims)
		c.Next()
	}
}

func userOf(c *gin.Context) Claims {
	v, _ := c.Get(ctxUser)
	claims, _ := v.(Claims)
	return claims
}

// ============================================================================
// RATE LIMITER
// ============================================================================

// RateLimiter is a sliding-window limiter per client IP.
type RateLimiter struct {
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	calls    int
	mu       sync.Mutex
	now      func() time.Time
}

// NewRateLimiter allows limit requests per window per IP. A limit of zero
// or less disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request from ip and reports whether it is within the limit.
func (rl *RateLimiter) Allow(ip string) (remaining int, ok bool) {
	if rl.limit <= 0 {
		return 0, true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.calls++
	if rl.calls%256 == 0 {
		rl.sweepLocked(now)
	}

	valid := prune(rl.requests[ip], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return 0, false
	}
	valid = append(valid, now)
	rl.requests[ip] = valid
	return rl.limit - len(valid), true
}

// sweepLocked drops IPs with no requests inside the window.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	start := now.Add(-rl.window)
	for ip, ts := range rl.requests {
		if valid := prune(ts, start); len(valid) == 0 {
			delete(rl.requests, ip)
		} else {
			rl.requests[ip] = valid
		}
	}
}

func prune(ts []time.Time, start time.Time) []time.Time {
	valid := ts[:0]
	for _, t := range ts {
		if t.After(start) {
			valid = append(valid, t)
		}
	}
	return valid
}

func rateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.limit <= 0 {
			c.Next()
			return
		}
		remaining, ok := rl.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			detail(c, http.StatusTooManyRequests, "Request was throttled.")
			return
		}
		c.Next()
	}
}

// ============================================================================
// LOGGING, RECOVERY, HEADERS
// ============================================================================

func requestLogger(logger *zap.Logger, stats *Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		stats.requests.Add(1)
		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Handler panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				if !c.Writer.Written() {
					detail(c, http.StatusInternalServerError, "Internal server error")
				} else {
					c.Abort()
				}
			}
		}()
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}

// limitBody caps request bodies.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
