package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
	"github.com/schedsnap/schedsnap-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the session identifier.
const ContextSessionKey = "sessionID"

// Session protects routes by requiring a valid session token. The token's
// subject is the stable session identifier keying the preview store.
func Session(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid session token"))
			c.Abort()
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "session token missing subject"))
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, subject)
		c.Next()
	}
}

// SessionID returns the session identifier stored in the Gin context.
func SessionID(c *gin.Context) string {
	if v, exists := c.Get(ContextSessionKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
