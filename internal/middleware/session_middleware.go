package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// SessionIDKey is the gin context key holding the authenticated session id.
const SessionIDKey = "session_id"

// SessionResolver maps a session token to its session id.
type SessionResolver interface {
	SessionID(token string) (string, error)
}

// SessionMiddleware authenticates configurator requests with the Bearer
// session token issued at session creation.
type SessionMiddleware struct {
	sessions SessionResolver
	limiter  *InvalidTokenRateLimiter
}

// NewSessionMiddleware creates a SessionMiddleware. limiter may be nil.
func NewSessionMiddleware(sessions SessionResolver, limiter *InvalidTokenRateLimiter) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions, limiter: limiter}
}

// Handle returns the gin handler.
func (m *SessionMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if m.limiter != nil && m.limiter.Blocked(ip) {
			utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid session tokens")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(c, 401, "UNAUTHORIZED", "Missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.Error(c, 401, "UNAUTHORIZED", "Invalid authorization header")
			c.Abort()
			return
		}

		id, err := m.sessions.SessionID(parts[1])
		if err != nil {
			if m.limiter != nil {
				m.limiter.Fail(ip)
			}
			utils.Error(c, 401, utils.ErrInvalidToken.Error(), "Invalid or expired session token")
			c.Abort()
			return
		}

		c.Set(SessionIDKey, id)
		c.Next()
	}
}
