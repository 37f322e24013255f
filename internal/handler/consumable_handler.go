package handler

import (
	"net/http"

	"constructlink/internal/middleware"
	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/service"
	"constructlink/pkg/pagination"
	"constructlink/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConsumableHandler struct {
	consumableService service.ConsumableService
}

func NewConsumableHandler(consumableService service.ConsumableService) *ConsumableHandler {
	return &ConsumableHandler{consumableService: consumableService}
}

func (h *ConsumableHandler) RegisterRoutes(router *gin.RouterGroup) {
	consumables := router.Group("/consumables", middleware.RequireAuth())
	{
		consumables.GET("", h.ListConsumables)
		consumables.GET("/:id", h.GetConsumable)
		consumables.GET("/:id/transactions", h.StockHistory)
	}

	// Catalog writes are restricted to warehouse management
	manage := router.Group("/consumables",
		middleware.RequireRole(model.RoleAssetDirector, model.RoleWarehouseman),
		middleware.VerifyCSRF())
	{
		manage.POST("", h.CreateConsumable)
		manage.PUT("/:id", h.UpdateConsumable)
		manage.DELETE("/:id", h.DeleteConsumable)
		manage.POST("/:id/adjust", h.AdjustStock)
	}
}

// ListConsumables returns the consumable catalog with live availability
// @Summary      List consumables
// @Tags         consumables
// @Produce      json
// @Security     BearerAuth
// @Param        category    query     string  false  "Filter by category"
// @Param        project_id  query     string  false  "Filter by project"
// @Param        search      query     string  false  "Name or SKU search"
// @Param        low_stock   query     bool    false  "Only items at or below reorder level"
// @Success      200         {object}  response.Response
// @Router       /consumables [get]
func (h *ConsumableHandler) ListConsumables(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.ConsumableFilter{
		Category:  c.Query("category"),
		ProjectID: c.Query("project_id"),
		Search:    c.Query("search"),
		LowStock:  c.Query("low_stock") == "true",
		Page:      p.Page,
		Limit:     p.Limit,
	}

	views, total, err := h.consumableService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"consumables": views,
		"meta":        pagination.NewMeta(p, total),
	}))
}

// GetConsumable returns one consumable with availability and pending counts
// @Summary      Get consumable
// @Tags         consumables
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Consumable ID"
// @Success      200  {object}  response.Response{data=service.ConsumableView}
// @Failure      404  {object}  response.Response
// @Router       /consumables/{id} [get]
func (h *ConsumableHandler) GetConsumable(c *gin.Context) {
	view, err := h.consumableService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(view))
}

// StockHistory returns the stock transaction trail for one consumable
// @Summary      Get consumable stock history
// @Tags         consumables
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Consumable ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /consumables/{id}/transactions [get]
func (h *ConsumableHandler) StockHistory(c *gin.Context) {
	p := pagination.Parse(c)

	txs, total, err := h.consumableService.StockHistory(c.Request.Context(), c.Param("id"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"transactions": txs,
		"meta":         pagination.NewMeta(p, total),
	}))
}

// CreateConsumable adds a new catalog entry
// @Summary      Create consumable
// @Tags         consumables
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateConsumableRequest  true  "Consumable Payload"
// @Success      201      {object}  response.Response{data=service.ConsumableView}
// @Failure      400      {object}  response.Response
// @Router       /consumables [post]
func (h *ConsumableHandler) CreateConsumable(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CreateConsumableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.consumableService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.OK(view))
}

// UpdateConsumable edits catalog fields (never ledger quantities)
// @Summary      Update consumable
// @Tags         consumables
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "Consumable ID"
// @Param        payload  body      service.UpdateConsumableRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=service.ConsumableView}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /consumables/{id} [put]
func (h *ConsumableHandler) UpdateConsumable(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.UpdateConsumableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.consumableService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(view))
}

// DeleteConsumable removes a catalog entry with no outstanding reservations
// @Summary      Delete consumable
// @Tags         consumables
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Consumable ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /consumables/{id} [delete]
func (h *ConsumableHandler) DeleteConsumable(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	if err := h.consumableService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Consumable deleted", nil))
}

// AdjustStock applies a signed manual correction to on-hand stock
// @Summary      Adjust consumable stock
// @Tags         consumables
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Consumable ID"
// @Param        payload  body      service.AdjustStockRequest true  "Adjustment Payload"
// @Success      200      {object}  response.Response{data=service.ConsumableView}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /consumables/{id}/adjust [post]
func (h *ConsumableHandler) AdjustStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.consumableService.Adjust(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Stock adjusted", view))
}
