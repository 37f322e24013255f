package handler

import (
	"context"
	"net/http"

	"constructlink/internal/middleware"
	"constructlink/internal/repository"
	"constructlink/internal/service"
	"constructlink/internal/workflow"
	"constructlink/pkg/pagination"
	"constructlink/pkg/response"

	"github.com/gin-gonic/gin"
)

type WithdrawalHandler struct {
	withdrawalService service.WithdrawalService
}

func NewWithdrawalHandler(withdrawalService service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

func (h *WithdrawalHandler) RegisterRoutes(router *gin.RouterGroup) {
	withdrawals := router.Group("/withdrawals", middleware.RequireAuth())
	{
		withdrawals.GET("", h.ListWithdrawals)
		withdrawals.GET("/:id", h.GetWithdrawal)

		mutate := withdrawals.Group("", middleware.VerifyCSRF())
		{
			mutate.POST("", h.CreateWithdrawal)
			mutate.PUT("/:id/verify", h.Verify)
			mutate.PUT("/:id/approve", h.Approve)
			mutate.PUT("/:id/release", h.Release)
			mutate.PUT("/:id/return", h.Return)
			mutate.PUT("/:id/cancel", h.Cancel)
		}
	}
}

// availableTransitions lists the workflow actions the current status permits.
// Role filtering happens in the service; this only reflects the state machine.
func availableTransitions(variant workflow.Variant, status string) []string {
	actions := make([]string, 0, 5)
	for _, t := range []workflow.Transition{
		workflow.TransitionVerify, workflow.TransitionApprove,
		workflow.TransitionRelease, workflow.TransitionReturn, workflow.TransitionCancel,
	} {
		if workflow.CanTransition(variant, status, t) {
			actions = append(actions, string(t))
		}
	}
	return actions
}

func actorOrAbort(c *gin.Context) (workflow.Actor, bool) {
	id, role, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Fail("Authorization is missing"))
		return workflow.Actor{}, false
	}
	return workflow.Actor{ID: id, Role: role}, true
}

// CreateWithdrawal opens a new single-asset withdrawal request
// @Summary      Create withdrawal request
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateWithdrawalRequest  true  "Withdrawal Payload"
// @Success      201      {object}  response.Response{data=service.WithdrawalView}
// @Failure      400      {object}  response.Response
// @Router       /withdrawals [post]
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.withdrawalService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.OKMessage("Withdrawal request created", view))
}

// ListWithdrawals returns a filtered, paginated listing
// @Summary      List withdrawal requests
// @Tags         withdrawals
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "Filter by status"
// @Param        project_id  query     string  false  "Filter by project"
// @Param        date_from   query     string  false  "Created from (YYYY-MM-DD)"
// @Param        date_to     query     string  false  "Created to (YYYY-MM-DD)"
// @Param        receiver    query     string  false  "Receiver name or contact"
// @Success      200         {object}  response.Response
// @Router       /withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.WithdrawalFilter{
		Status:    c.Query("status"),
		ProjectID: c.Query("project_id"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Receiver:  c.Query("receiver"),
		Page:      p.Page,
		Limit:     p.Limit,
	}

	views, total, err := h.withdrawalService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"withdrawals": views,
		"meta":        pagination.NewMeta(p, total),
	}))
}

// GetWithdrawal returns one request plus the actions its status permits
// @Summary      Get withdrawal request
// @Tags         withdrawals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Withdrawal ID"
// @Success      200  {object}  response.Response{data=service.WithdrawalView}
// @Failure      404  {object}  response.Response
// @Router       /withdrawals/{id} [get]
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	view, err := h.withdrawalService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"withdrawal": view,
		"actions":    availableTransitions(workflow.AssetWorkflow, view.Status),
	}))
}

// Verify moves a request from Pending Verification to Pending Approval
// @Summary      Verify withdrawal request
// @Tags         withdrawals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Withdrawal ID"
// @Success      200  {object}  response.Response{data=service.WithdrawalView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /withdrawals/{id}/verify [put]
func (h *WithdrawalHandler) Verify(c *gin.Context) {
	h.runTransition(c, h.withdrawalService.Verify, "Withdrawal verified")
}

// Approve authorizes a verified request
// @Summary      Approve withdrawal request
// @Tags         withdrawals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Withdrawal ID"
// @Success      200  {object}  response.Response{data=service.WithdrawalView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /withdrawals/{id}/approve [put]
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	h.runTransition(c, h.withdrawalService.Approve, "Withdrawal approved")
}

// Release records the physical hand-off of the asset
// @Summary      Release withdrawal request
// @Tags         withdrawals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Withdrawal ID"
// @Success      200  {object}  response.Response{data=service.WithdrawalView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /withdrawals/{id}/release [put]
func (h *WithdrawalHandler) Release(c *gin.Context) {
	h.runTransition(c, h.withdrawalService.Release, "Withdrawal released")
}

// Return records the asset coming back, with its condition
// @Summary      Return withdrawn asset
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Withdrawal ID"
// @Param        payload  body      service.ReturnRequest  true  "Return Payload"
// @Success      200      {object}  response.Response{data=service.WithdrawalView}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /withdrawals/{id}/return [put]
func (h *WithdrawalHandler) Return(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.withdrawalService.Return(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Asset returned", view))
}

// Cancel voids a request from any non-terminal status
// @Summary      Cancel withdrawal request
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Withdrawal ID"
// @Param        payload  body      service.CancelRequest  true  "Cancel Payload"
// @Success      200      {object}  response.Response{data=service.WithdrawalView}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /withdrawals/{id}/cancel [put]
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.withdrawalService.Cancel(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Withdrawal canceled", view))
}

func (h *WithdrawalHandler) runTransition(
	c *gin.Context,
	fn func(ctx context.Context, actor workflow.Actor, id string) (*service.WithdrawalView, error),
	message string,
) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	view, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage(message, view))
}
