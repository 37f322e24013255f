package repository

import (
	"context"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	List(ctx context.Context, search string, activeOnly bool, page, limit int) ([]model.Project, int64, error)
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return GetDB(ctx, r.db).Create(project).Error
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) error {
	return GetDB(ctx, r.db).Save(project).Error
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Project{}).Error
}

func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := GetDB(ctx, r.db).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) List(ctx context.Context, search string, activeOnly bool, page, limit int) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if search != "" {
			q = q.Where("name ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
		}
		if activeOnly {
			q = q.Where("is_active = true")
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := apply(db.Model(&model.Project{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := apply(db.Model(&model.Project{})).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&projects).Error; err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}
