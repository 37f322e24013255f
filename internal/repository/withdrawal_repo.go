package repository

import (
	"context"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WithdrawalRepository interface {
	Create(ctx context.Context, w *model.WithdrawalRequest) error
	Update(ctx context.Context, w *model.WithdrawalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error)
	List(ctx context.Context, filter WithdrawalFilter) ([]model.WithdrawalRequest, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountOverdue(ctx context.Context) (int64, error)
}

// WithdrawalFilter narrows request listings the way the index views do.
type WithdrawalFilter struct {
	Status    string
	ProjectID string
	DateFrom  string // inclusive, YYYY-MM-DD
	DateTo    string // inclusive, YYYY-MM-DD
	Receiver  string // matches receiver name or contact
	Page      int
	Limit     int
}

type withdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(ctx context.Context, w *model.WithdrawalRequest) error {
	return GetDB(ctx, r.db).Create(w).Error
}

func (r *withdrawalRepository) Update(ctx context.Context, w *model.WithdrawalRequest) error {
	return GetDB(ctx, r.db).Save(w).Error
}

func (r *withdrawalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	if err := GetDB(ctx, r.db).Preload("Asset").Preload("Project").Preload("Creator").
		First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func applyWithdrawalFilter(q *gorm.DB, filter WithdrawalFilter) *gorm.DB {
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.DateFrom != "" {
		q = q.Where("created_at >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q = q.Where("created_at < (?::date + 1)", filter.DateTo)
	}
	if filter.Receiver != "" {
		like := "%" + filter.Receiver + "%"
		q = q.Where("receiver_first_name ILIKE ? OR receiver_last_name ILIKE ? OR receiver_contact ILIKE ?", like, like, like)
	}
	return q
}

func (r *withdrawalRepository) List(ctx context.Context, filter WithdrawalFilter) ([]model.WithdrawalRequest, int64, error) {
	var list []model.WithdrawalRequest
	var total int64

	db := GetDB(ctx, r.db)
	if err := applyWithdrawalFilter(db.Model(&model.WithdrawalRequest{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := applyWithdrawalFilter(db.Model(&model.WithdrawalRequest{}), filter).
		Preload("Asset").Preload("Project").Preload("Creator")
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *withdrawalRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := GetDB(ctx, r.db).Model(&model.WithdrawalRequest{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

func (r *withdrawalRepository) CountOverdue(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.WithdrawalRequest{}).
		Where("status = ? AND expected_return IS NOT NULL AND expected_return < NOW()", model.StatusReleased).
		Count(&count).Error
	return count, err
}
