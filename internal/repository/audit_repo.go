package repository

import (
	"context"

	"constructlink/internal/model"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

// AuditFilter narrows audit-log listings
type AuditFilter struct {
	Action   string
	UserID   string
	DateFrom string
	DateTo   string
	Page     int
	Limit    int
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.DateFrom != "" {
			q = q.Where("created_at >= ?", filter.DateFrom)
		}
		if filter.DateTo != "" {
			q = q.Where("created_at < (?::date + 1)", filter.DateTo)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := apply(db.Model(&model.AuditLog{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db.Model(&model.AuditLog{}).Preload("User")).
		Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
