package repository

import (
	"context"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssetRepository interface {
	Create(ctx context.Context, asset *model.Asset) error
	Update(ctx context.Context, asset *model.Asset) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	FindByRef(ctx context.Context, ref string) (*model.Asset, error)
	List(ctx context.Context, filter AssetFilter) ([]model.Asset, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// AssetFilter narrows asset listings
type AssetFilter struct {
	Status    string
	Category  string
	ProjectID string
	Search    string
	Page      int
	Limit     int
}

type assetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) Create(ctx context.Context, asset *model.Asset) error {
	return GetDB(ctx, r.db).Create(asset).Error
}

func (r *assetRepository) Update(ctx context.Context, asset *model.Asset) error {
	return GetDB(ctx, r.db).Save(asset).Error
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Asset{}).Error
}

func (r *assetRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var asset model.Asset
	if err := GetDB(ctx, r.db).Preload("Project").First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var asset model.Asset
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) FindByRef(ctx context.Context, ref string) (*model.Asset, error) {
	var asset model.Asset
	if err := GetDB(ctx, r.db).Where("ref = ?", ref).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) List(ctx context.Context, filter AssetFilter) ([]model.Asset, int64, error) {
	var assets []model.Asset
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.ProjectID != "" {
			q = q.Where("project_id = ?", filter.ProjectID)
		}
		if filter.Search != "" {
			q = q.Where("name ILIKE ? OR ref ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := apply(db.Model(&model.Asset{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db.Model(&model.Asset{}).Preload("Project")).
		Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&assets).Error; err != nil {
		return nil, 0, err
	}

	return assets, total, nil
}

func (r *assetRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Asset{}).Where("id = ?", id).Update("status", status).Error
}
