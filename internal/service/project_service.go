package service

import (
	"context"
	"errors"
	"fmt"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateProjectRequest struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

type UpdateProjectRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	IsActive *bool  `json:"is_active"`
}

type ProjectService interface {
	Create(ctx context.Context, req CreateProjectRequest) (*model.Project, error)
	Update(ctx context.Context, id string, req UpdateProjectRequest) (*model.Project, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context, search string, activeOnly bool, page, limit int) ([]model.Project, int64, error)
}

type projectService struct {
	repo repository.ProjectRepository
}

func NewProjectService(repo repository.ProjectRepository) ProjectService {
	return &projectService{repo: repo}
}

func (s *projectService) Create(ctx context.Context, req CreateProjectRequest) (*model.Project, error) {
	project := &model.Project{
		Code:     req.Code,
		Name:     req.Name,
		Location: req.Location,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) Update(ctx context.Context, id string, req UpdateProjectRequest) (*model.Project, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project id", workflow.ErrValidation)
	}

	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}

	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Location != "" {
		project.Location = req.Location
	}
	if req.IsActive != nil {
		project.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, id string) error {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid project id", workflow.ErrValidation)
	}
	if _, err := s.repo.FindByID(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: project %s", workflow.ErrNotFound, id)
		}
		return err
	}
	return s.repo.Delete(ctx, projectID)
}

func (s *projectService) Get(ctx context.Context, id string) (*model.Project, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project id", workflow.ErrValidation)
	}
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context, search string, activeOnly bool, page, limit int) ([]model.Project, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	return s.repo.List(ctx, search, activeOnly, page, limit)
}
