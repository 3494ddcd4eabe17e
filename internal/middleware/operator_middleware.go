package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// OperatorKey is the gin context key holding the authenticated operator.
const OperatorKey = "operator"

// OperatorMiddleware guards the checkout audit endpoints with operator JWTs.
// With an empty secret every request is rejected.
type OperatorMiddleware struct {
	secret string
}

func NewOperatorMiddleware(secret string) *OperatorMiddleware {
	return &OperatorMiddleware{secret: secret}
}

func (m *OperatorMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.Error(c, 401, "UNAUTHORIZED", "Invalid authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			// EventSource cannot set headers.
			token = c.Query("token")
		}
		if token == "" {
			utils.Error(c, 401, "UNAUTHORIZED", "Missing operator token")
			c.Abort()
			return
		}

		claims, err := utils.ValidateOperatorToken(m.secret, token)
		if err != nil {
			utils.Error(c, 401, utils.ErrInvalidToken.Error(), "Invalid or expired operator token")
			c.Abort()
			return
		}

		c.Set(OperatorKey, claims.Operator)
		c.Next()
	}
}
