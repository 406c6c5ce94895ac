package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"courier-dashboard/internal/domain"
)

const (
	sessionIDContextKey = "session-id"
	sessionContextKey   = "session"
)

// corsMiddleware grants credentialed cross-origin access only to the listed origins.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		c.Writer.Header().Add("Vary", "Origin")
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok && origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
			c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request handled")
	}
}

// sessionMiddleware resolves the cookie to a live session, if any, for every request.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(h.cookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}
		sessionID, err := h.tokens.ParseToken(raw)
		if err != nil {
			h.logger.WithError(err).Debug("ignoring invalid session cookie")
			c.Next()
			return
		}
		c.Set(sessionIDContextKey, sessionID)

		state := h.shell.OnStartup(c.Request.Context(), sessionID)
		if state.Authenticated {
			c.Set(sessionContextKey, state.Session)
		}
		c.Next()
	}
}

func requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c) == nil {
			AbortWithError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
			return
		}
		c.Next()
	}
}

// CurrentSession returns the live session resolved for the request, or nil.
func CurrentSession(c *gin.Context) *domain.Session {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	sess, ok := value.(*domain.Session)
	if !ok {
		return nil
	}
	return sess
}

func presentedSessionID(c *gin.Context) string {
	return c.GetString(sessionIDContextKey)
}
