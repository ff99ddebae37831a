package router

import (
	"net/http"

	"github.com/compozy/plansync/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ProblemDocument models an RFC 7807 error envelope for API responses.
type ProblemDocument struct {
	Type       string `json:"type,omitempty"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Instance   string `json:"instance,omitempty"`
	Code       string `json:"code,omitempty"`
	WorkflowID string `json:"workflow_id,omitempty"`
}

// RespondProblem writes a canonical RFC 7807 error response and aborts.
func RespondProblem(c *gin.Context, problem *ProblemDocument) {
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	logProblem(c, problem)
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(problem.Status, problem)
}

// RespondProblemWithCode writes a problem response embedding a code and detail.
func RespondProblemWithCode(c *gin.Context, status int, code string, detail string) {
	RespondProblem(c, &ProblemDocument{Status: status, Code: code, Detail: detail})
}

func logProblem(c *gin.Context, problem *ProblemDocument) {
	log := logger.FromContext(c.Request.Context())
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []any{
		"status", problem.Status,
		"code", problem.Code,
		"detail", problem.Detail,
		"route", route,
	}
	if requestID := c.Writer.Header().Get(HeaderRequestID); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if problem.WorkflowID != "" {
		fields = append(fields, "workflow_id", problem.WorkflowID)
	}
	if problem.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Warn("request rejected", fields...)
}
