package handler

import (
	"net/http"

	"constructlink/internal/middleware"
	"constructlink/internal/model"
	"constructlink/internal/service"
	"constructlink/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports",
		middleware.RequireRole(model.RoleAssetDirector, model.RoleProjectManager, model.RoleWarehouseman))
	{
		reports.GET("/summary", h.Summary)
	}
}

// Summary returns the operations dashboard aggregates
// @Summary      Get dashboard summary
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.DashboardSummary}
// @Router       /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reportService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(summary))
}
