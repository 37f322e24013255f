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

type BatchHandler struct {
	batchService service.BatchService
}

func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	batches := router.Group("/batches", middleware.RequireAuth())
	{
		batches.GET("", h.ListBatches)
		batches.GET("/:id", h.GetBatch)
		batches.GET("/:id/print", h.PrintBatch)

		mutate := batches.Group("", middleware.VerifyCSRF())
		{
			mutate.POST("", h.CreateBatch)
			mutate.PUT("/:id/verify", h.Verify)
			mutate.PUT("/:id/approve", h.Approve)
			mutate.PUT("/:id/release", h.Release)
			mutate.PUT("/:id/cancel", h.Cancel)
		}
	}
}

// CreateBatch submits a consumable cart as a new withdrawal batch
// @Summary      Create withdrawal batch
// @Tags         batches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateBatchRequest  true  "Batch Payload"
// @Success      201      {object}  response.Response{data=service.BatchView}
// @Failure      400      {object}  response.Response
// @Router       /batches [post]
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.batchService.CreateBatch(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.OKMessage("Withdrawal batch created", view))
}

// ListBatches returns a filtered, paginated batch listing
// @Summary      List withdrawal batches
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "Filter by status"
// @Param        project_id  query     string  false  "Filter by project"
// @Param        date_from   query     string  false  "Created from (YYYY-MM-DD)"
// @Param        date_to     query     string  false  "Created to (YYYY-MM-DD)"
// @Param        receiver    query     string  false  "Receiver name or contact"
// @Success      200         {object}  response.Response
// @Router       /batches [get]
func (h *BatchHandler) ListBatches(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.BatchFilter{
		Status:    c.Query("status"),
		ProjectID: c.Query("project_id"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Receiver:  c.Query("receiver"),
		Page:      p.Page,
		Limit:     p.Limit,
	}

	views, total, err := h.batchService.ListBatches(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"batches": views,
		"meta":    pagination.NewMeta(p, total),
	}))
}

// GetBatch returns one batch plus the actions its status permits
// @Summary      Get withdrawal batch
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchView}
// @Failure      404  {object}  response.Response
// @Router       /batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	view, err := h.batchService.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"batch":   view,
		"actions": availableTransitions(workflow.BatchWorkflow, view.Status),
	}))
}

// PrintBatch returns the flattened print-formatted rendering of a batch
// @Summary      Get batch print view
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchPrintView}
// @Failure      404  {object}  response.Response
// @Router       /batches/{id}/print [get]
func (h *BatchHandler) PrintBatch(c *gin.Context) {
	view, err := h.batchService.PrintView(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(view))
}

// Verify moves a batch from Pending Verification to Pending Approval
// @Summary      Verify withdrawal batch
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /batches/{id}/verify [put]
func (h *BatchHandler) Verify(c *gin.Context) {
	h.runTransition(c, h.batchService.Verify, "Batch verified")
}

// Approve authorizes a batch and reserves stock for every line
// @Summary      Approve withdrawal batch
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /batches/{id}/approve [put]
func (h *BatchHandler) Approve(c *gin.Context) {
	h.runTransition(c, h.batchService.Approve, "Batch approved")
}

// Release records the physical hand-off and consumes the reservations
// @Summary      Release withdrawal batch
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /batches/{id}/release [put]
func (h *BatchHandler) Release(c *gin.Context) {
	h.runTransition(c, h.batchService.Release, "Batch released")
}

// Cancel voids a batch from any non-terminal status
// @Summary      Cancel withdrawal batch
// @Tags         batches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Batch ID"
// @Param        payload  body      service.CancelRequest  true  "Cancel Payload"
// @Success      200      {object}  response.Response{data=service.BatchView}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /batches/{id}/cancel [put]
func (h *BatchHandler) Cancel(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.batchService.Cancel(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Batch canceled", view))
}

func (h *BatchHandler) runTransition(
	c *gin.Context,
	fn func(ctx context.Context, actor workflow.Actor, id string) (*service.BatchView, error),
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
