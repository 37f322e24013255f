package handler

import (
	"net/http"

	"constructlink/internal/middleware"
	"constructlink/internal/model"
	"constructlink/internal/service"
	"constructlink/pkg/pagination"
	"constructlink/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService service.ProjectService
}

func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/projects", middleware.RequireAuth())
	{
		projects.GET("", h.ListProjects)
		projects.GET("/:id", h.GetProject)
	}

	manage := router.Group("/projects",
		middleware.RequireRole(model.RoleAssetDirector, model.RoleProjectManager),
		middleware.VerifyCSRF())
	{
		manage.POST("", h.CreateProject)
		manage.PUT("/:id", h.UpdateProject)
		manage.DELETE("/:id", h.DeleteProject)
	}
}

// ListProjects returns a paginated project listing
// @Summary      List projects
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Name or code search"
// @Param        active  query     bool    false  "Only active projects"
// @Success      200     {object}  response.Response
// @Router       /projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	p := pagination.Parse(c)

	projects, total, err := h.projectService.List(c.Request.Context(),
		c.Query("search"), c.Query("active") == "true", p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{
		"projects": projects,
		"meta":     pagination.NewMeta(p, total),
	}))
}

// GetProject returns one project
// @Summary      Get project
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response{data=model.Project}
// @Failure      404  {object}  response.Response
// @Router       /projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(project))
}

// CreateProject registers a new construction site
// @Summary      Create project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateProjectRequest  true  "Project Payload"
// @Success      201      {object}  response.Response{data=model.Project}
// @Failure      400      {object}  response.Response
// @Router       /projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.OK(project))
}

// UpdateProject edits project details or toggles its active flag
// @Summary      Update project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Project ID"
// @Param        payload  body      service.UpdateProjectRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=model.Project}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Fail("Invalid request payload: "+err.Error()))
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OK(project))
}

// DeleteProject soft-deletes a project
// @Summary      Delete project
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	if err := h.projectService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.OKMessage("Project deleted", nil))
}
