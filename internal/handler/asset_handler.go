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

type AssetHandler struct {
	assetService service.AssetService
}

func NewAssetHandler(assetService service.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

func (h *AssetHandler) RegisterRoutes(router *gin.RouterGroup) {
	assets := router.Group("/assets", middleware.RequireAuth())
	{
		assets.GET("", h.ListAssets)
		assets.GET("/:id", h.GetAsset)
	}

	manage := router.Group("/assets",
		middleware.RequireRole(model.RoleAssetDirector),
		middleware.VerifyCSRF())
	{
		manage.POST("", h.CreateAsset)
		manage.PUT("/:id", h.UpdateAsset)
		manage.DELETE("/:id", h.DeleteAsset)
	}
}

// ListAssets returns a filtered asset listing
// @Summary      List assets
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "Filter by status"
// @Param        category    query     string  false  "Filter by category"
// @Param        project_id  query     string  false  "Filter by project"
// @Param        search      query     string  false  "Name or ref search"
// @Success      200         {object}  response.Response
// @Router       /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.AssetFilter{
		Status:    c.Query("status"),
		Category:  c.Query("category"),
		ProjectID: c.Query("project_id"),
		Search:    c.Query("search"),
		Page:      p.Page,
		Limit:     p.Limit,
	}

	assets, total, err := h.assetService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"assets": assets,
		"meta":   pagination.NewMeta(p, total),
	}))
}

// GetAsset returns one asset
// @Summary      Get asset
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Asset ID"
// @Success      200  {object}  response.Response{data=model.Asset}
// @Failure      404  {object}  response.Response
// @Router       /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	asset, err := h.assetService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(asset))
}

// CreateAsset registers a new durable asset
// @Summary      Create asset
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAssetRequest  true  "Asset Payload"
// @Success      201      {object}  response.Response{data=model.Asset}
// @Failure      400      {object}  response.Response
// @Router       /assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	asset, err := h.assetService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.OK(asset))
}

// UpdateAsset edits asset details; workflow statuses stay workflow-owned
// @Summary      Update asset
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Asset ID"
// @Param        payload  body      service.UpdateAssetRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=model.Asset}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /assets/{id} [put]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	asset, err := h.assetService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(asset))
}

// DeleteAsset soft-deletes an asset not currently withdrawn
// @Summary      Delete asset
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Asset ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	if err := h.assetService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Asset deleted", nil))
}
