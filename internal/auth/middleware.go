package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"telehealth-calls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authorizationHeader = "Authorization"

// RequireAccessToken admits requests carrying a valid access token. The caller's
// id and role go onto the request context and onto the request logger. Role
// checks per route live in internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader(authorizationHeader))
		if !ok {
			unauthorized(c, "", "missing bearer token")
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			logger.FromGin(c).Debug("access token rejected", "err", err)
			unauthorized(c, "invalid_token", msg)
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.UserID, claims.Role))
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		logger.Bind(c, logger.FromGin(c).With("actor_role", claims.Role, "actor_id", claims.UserID))

		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header. The scheme
// name is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(c *gin.Context, code, msg string) {
	challenge := "Bearer"
	if code != "" {
		challenge += ` error="` + code + `"`
	}
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
}
