package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/starcoex/auth-platform/internal/usecase"
)

// UserIDKey is the gin context key the authenticated principal id is stored under.
const UserIDKey = "user_id"

const claimsKey = "claims"

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		RequestID: GetRequestID(c),
	}
}

// RequireAuth validates the Authorization header and stores the principal
// claims in the request context. It accepts a bearer header or, for browser
// clients, the Authentication cookie.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(claimsKey, claims)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	cookie, err := c.Cookie("Authentication")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie)
}

// GetAuthenticatedUserID retrieves the principal id from context.
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
