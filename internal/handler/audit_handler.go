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

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audits := router.Group("/audit-logs", middleware.RequireRole(model.RoleAssetDirector))
	{
		audits.GET("", h.ListAuditLogs)
	}
}

// ListAuditLogs returns the filtered audit trail
// @Summary      List audit logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        action     query     string  false  "Filter by action"
// @Param        user_id    query     string  false  "Filter by user"
// @Param        date_from  query     string  false  "Created from (YYYY-MM-DD)"
// @Param        date_to    query     string  false  "Created to (YYYY-MM-DD)"
// @Success      200        {object}  response.Response
// @Router       /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	filter := repository.AuditFilter{
		Action:   c.Query("action"),
		UserID:   c.Query("user_id"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Page:     p.Page,
		Limit:    p.Limit,
	}

	logs, total, err := h.auditService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"logs": logs,
		"meta": pagination.NewMeta(p, total),
	}))
}
