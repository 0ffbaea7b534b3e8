package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/auth"
	"github.com/ryosukesatoh/researchtldr/internal/metrics"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session"

	contextKeyClaims = "claims"
)

// requestLogger logs each request with zap and counts it by route.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		log.Info("request", fields...)
	}
}

// requireAuth rejects requests without a valid session token.
func requireAuth(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.Parse(extractToken(c))
		if err != nil {
			unauthorized(c)
			return
		}
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// optionalAuth records the session when a valid token is present.
func optionalAuth(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := m.Parse(token); err == nil {
				c.Set(contextKeyClaims, claims)
			}
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(contextKeyClaims)
	claims, _ := v.(*auth.Claims)
	return claims
}

func currentSub(c *gin.Context) string {
	if claims := currentClaims(c); claims != nil {
		return claims.Subject
	}
	return ""
}

// extractToken reads a Bearer token, falling back to the session cookie.
func extractToken(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
		if strings.HasPrefix(strings.ToLower(h), "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return h
	}
	cookie, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie
}
