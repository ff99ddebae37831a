package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/compozy/plansync/engine/infra/server/router"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware echoes or assigns X-Request-ID and attaches a request
// scoped logger to the request context.
func RequestIDMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(router.HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(router.HeaderRequestID, requestID)
		ctx := logger.ContextWithLogger(c.Request.Context(), log.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// LoggerMiddleware logs HTTP request details.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()
		if raw != "" {
			path = path + "?" + raw
		}
		logger.FromContext(c.Request.Context()).Info("Request completed",
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
			"path", path,
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

// UserMiddleware requires the X-User-ID header set by the upstream
// authenticator and exposes it to handlers.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(router.HeaderUserID))
		if userID == "" {
			router.RespondProblemWithCode(c, http.StatusUnauthorized, router.ErrUnauthorizedCode,
				"missing "+router.HeaderUserID+" header")
			return
		}
		router.SetUserID(c, userID)
		ctx := logger.ContextWithLogger(c.Request.Context(),
			logger.FromContext(c.Request.Context()).With("user_id", userID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
