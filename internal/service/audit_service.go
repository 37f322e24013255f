package service

import (
	"context"

	"constructlink/internal/model"
	"constructlink/internal/repository"
)

type AuditService interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}
