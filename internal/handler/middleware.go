package handler

import (
	"net/http"
	"strings"

	"videotube/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const ctxUserID = "UserID"

type AccessVerifier interface {
	VerifyAccess(token string) (*auth.AccessClaims, error)
}

// accessToken takes the bearer token from the Authorization header, falling
// back to the accessToken cookie.
func accessToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}

		return parts[1], true
	}

	if cookie, err := c.Cookie(accessTokenCookie); err == nil && cookie != "" {
		return cookie, true
	}

	return "", false
}

func AuthMiddleware(tokens AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := accessToken(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "unauthorized request")

			return
		}

		claims, err := tokens.VerifyAccess(tokenStr)
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid access token")

			return
		}

		c.Set(ctxUserID, claims.UserID)

		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid access token is
// present and lets anonymous requests through otherwise.
func OptionalAuthMiddleware(tokens AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := accessToken(c); ok {
			if claims, err := tokens.VerifyAccess(tokenStr); err == nil {
				c.Set(ctxUserID, claims.UserID)
			}
		}

		c.Next()
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}

	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}
