package api

import (
	"net/http"
	"strings"

	"bakery-pos/internal/models"
	"bakery-pos/internal/service"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// authMiddleware resolves the bearer token to a live session
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
				"code":  "UNAUTHORIZED",
			})
			return
		}

		session, err := h.svc.Sessions.Authenticate(strings.TrimSpace(token))
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// requireRole rejects sessions that do not hold role. Authenticate has
// already checked the token role claim against the session.
func requireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": models.ErrForbidden.Error(),
				"code":  "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) *service.Session {
	return c.MustGet(sessionKey).(*service.Session)
}
