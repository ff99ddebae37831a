package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/engine/infra/server/router"
	"github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Service is the orchestrator surface the HTTP handlers use.
type Service interface {
	Create(ctx context.Context, req *workflow.Request) (*workflow.Instance, error)
	Resume(ctx context.Context, workflowID core.ID, userID string) (*workflow.Instance, error)
	Retry(ctx context.Context, workflowID core.ID, userID string) (*workflow.Instance, error)
	GetStatus(ctx context.Context, workflowID core.ID, userID string) (*workflow.Instance, error)
	List(ctx context.Context, userID string, limit int) ([]*workflow.Instance, error)
}

type Handlers struct {
	service    Service
	dispatcher workflow.Dispatcher
}

func NewHandlers(service Service, dispatcher workflow.Dispatcher) *Handlers {
	return &Handlers{service: service, dispatcher: dispatcher}
}

// Register mounts the plan routes on group.
func (h *Handlers) Register(group *gin.RouterGroup) {
	plans := group.Group("/plans")
	plans.POST("", h.createPlan)
	plans.GET("", h.listPlans)
	plans.GET("/:id", h.getPlan)
	plans.POST("/:id/retry", h.retryPlan)
}

// createPlan persists a submission and hands it to the dispatcher. With
// ?wait=true the run happens inside the request and the terminal record is
// returned.
func (h *Handlers) createPlan(c *gin.Context) {
	ctx := c.Request.Context()
	var req workflow.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "invalid request body")
		return
	}
	req.UserID = router.UserID(c)
	inst, err := h.service.Create(ctx, &req)
	if err != nil {
		respondError(c, err, "")
		return
	}
	if c.Query("wait") == "true" {
		h.runNow(c, inst)
		return
	}
	h.dispatch(c, inst, "plan accepted")
}

func (h *Handlers) getPlan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inst, err := h.service.GetStatus(c.Request.Context(), id, router.UserID(c))
	if err != nil {
		respondError(c, err, id.String())
		return
	}
	router.RespondOK(c, "plan retrieved", inst)
}

func (h *Handlers) listPlans(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "limit must be a non-negative integer")
			return
		}
		limit = v
	}
	items, err := h.service.List(c.Request.Context(), router.UserID(c), limit)
	if err != nil {
		respondError(c, err, "")
		return
	}
	router.RespondOK(c, "plans retrieved", gin.H{"plans": items, "limit": workflow.NormalizeLimit(limit)})
}

func (h *Handlers) retryPlan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inst, err := h.service.Retry(c.Request.Context(), id, router.UserID(c))
	if err != nil {
		respondError(c, err, id.String())
		return
	}
	if inst.Status.IsTerminal() {
		router.RespondOK(c, "plan already completed", inst)
		return
	}
	if c.Query("wait") == "true" {
		h.runNow(c, inst)
		return
	}
	h.dispatch(c, inst, "retry accepted")
}

func (h *Handlers) dispatch(c *gin.Context, inst *workflow.Instance, message string) {
	if err := h.dispatcher.Dispatch(c.Request.Context(), inst); err != nil {
		logger.FromContext(c.Request.Context()).Error("Dispatch failed", "workflow_id", inst.WorkflowID, "error", err)
		router.RespondProblem(c, &router.ProblemDocument{
			Status:     http.StatusServiceUnavailable,
			Code:       router.ErrServiceUnavailableCode,
			Detail:     "plan was recorded but could not be scheduled",
			WorkflowID: inst.WorkflowID.String(),
		})
		return
	}
	c.Header("Location", c.Request.URL.Path+"/"+inst.WorkflowID.String())
	router.RespondAccepted(c, message, inst)
}

func (h *Handlers) runNow(c *gin.Context, inst *workflow.Instance) {
	final, err := h.service.Resume(c.Request.Context(), inst.WorkflowID, inst.UserID)
	if final == nil {
		respondError(c, err, inst.WorkflowID.String())
		return
	}
	if final.Status == workflow.StatusFailed {
		respondFailed(c, final)
		return
	}
	router.RespondOK(c, "plan synced", final)
}

func pathID(c *gin.Context) (core.ID, bool) {
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "invalid plan id")
		return "", false
	}
	return id, true
}

// respondFailed reports a run that ended failed. Permission failures carry
// the reauthorization code so clients can prompt the user.
func respondFailed(c *gin.Context, inst *workflow.Instance) {
	code := workflow.ErrCodeSyncFailed
	if inst.ErrorCode != nil {
		code = *inst.ErrorCode
	}
	detail := ""
	if inst.ErrorMessage != nil {
		detail = *inst.ErrorMessage
	}
	status := http.StatusBadGateway
	if code == calendar.ReauthMarker {
		status = http.StatusForbidden
	}
	router.RespondProblem(c, &router.ProblemDocument{
		Status:     status,
		Code:       code,
		Detail:     detail,
		WorkflowID: inst.WorkflowID.String(),
	})
}

func respondError(c *gin.Context, err error, workflowID string) {
	problem := &router.ProblemDocument{WorkflowID: workflowID}
	switch {
	case errors.Is(err, workflow.ErrInvalidRequest):
		problem.Status = http.StatusBadRequest
		problem.Code = workflow.ErrCodeInvalidRequest
		problem.Detail = err.Error()
	case errors.Is(err, workflow.ErrNotFound):
		problem.Status = http.StatusNotFound
		problem.Code = router.ErrNotFoundCode
		problem.Detail = "plan not found"
	case errors.Is(err, workflow.ErrNotRetryable):
		problem.Status = http.StatusConflict
		problem.Code = router.ErrConflictCode
		problem.Detail = err.Error()
	default:
		problem.Status = http.StatusInternalServerError
		problem.Code = router.ErrInternalCode
		if code := core.ErrorCode(err); code != "" {
			problem.Code = code
		}
		problem.Detail = "internal error"
	}
	router.RespondProblem(c, problem)
}
