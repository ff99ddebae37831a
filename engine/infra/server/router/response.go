package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope for successful API responses.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, &Response{Status: status, Message: message, Data: data})
}

func RespondOK(c *gin.Context, message string, data any) {
	respond(c, http.StatusOK, message, data)
}

func RespondCreated(c *gin.Context, message string, data any) {
	respond(c, http.StatusCreated, message, data)
}

func RespondAccepted(c *gin.Context, message string, data any) {
	respond(c, http.StatusAccepted, message, data)
}

// UserID returns the caller identity set by the user middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

const userIDKey = "plansync.user_id"

// SetUserID records the caller identity on the gin context.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}
