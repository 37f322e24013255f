package service

import (
	"context"

	"constructlink/internal/model"
	"constructlink/internal/repository"
)

// DashboardSummary aggregates the numbers the operations dashboard shows:
// workflow throughput, overdue returns, and stock health.
type DashboardSummary struct {
	WithdrawalsByStatus map[string]int64          `json:"withdrawals_by_status"`
	BatchesByStatus     map[string]int64          `json:"batches_by_status"`
	OverdueWithdrawals  int64                     `json:"overdue_withdrawals"`
	LowStock            []ConsumableView          `json:"low_stock"`
	TopConsumed         []repository.ConsumedLine `json:"top_consumed"`
}

type ReportService interface {
	Summary(ctx context.Context) (*DashboardSummary, error)
}

type reportService struct {
	withdrawalRepo repository.WithdrawalRepository
	batchRepo      repository.BatchRepository
	consumableRepo repository.ConsumableRepository
}

func NewReportService(
	withdrawalRepo repository.WithdrawalRepository,
	batchRepo repository.BatchRepository,
	consumableRepo repository.ConsumableRepository,
) ReportService {
	return &reportService{
		withdrawalRepo: withdrawalRepo,
		batchRepo:      batchRepo,
		consumableRepo: consumableRepo,
	}
}

func (s *reportService) Summary(ctx context.Context) (*DashboardSummary, error) {
	withdrawals, err := s.withdrawalRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	overdue, err := s.withdrawalRepo.CountOverdue(ctx)
	if err != nil {
		return nil, err
	}

	lowStockItems, _, err := s.consumableRepo.List(ctx, repository.ConsumableFilter{
		LowStock: true,
		Page:     1,
		Limit:    20,
	})
	if err != nil {
		return nil, err
	}
	lowStock := make([]ConsumableView, 0, len(lowStockItems))
	for i := range lowStockItems {
		lowStock = append(lowStock, *toConsumableView(&lowStockItems[i]))
	}

	topConsumed, err := s.batchRepo.TopConsumed(ctx, 10)
	if err != nil {
		return nil, err
	}

	// Make sure every workflow status appears even with zero rows, so the
	// dashboard cards render consistently.
	for _, status := range []string{
		model.StatusPendingVerification, model.StatusPendingApproval,
		model.StatusApproved, model.StatusReleased, model.StatusReturned, model.StatusCanceled,
	} {
		if _, ok := withdrawals[status]; !ok {
			withdrawals[status] = 0
		}
		if _, ok := batches[status]; !ok && status != model.StatusReturned {
			batches[status] = 0
		}
	}

	return &DashboardSummary{
		WithdrawalsByStatus: withdrawals,
		BatchesByStatus:     batches,
		OverdueWithdrawals:  overdue,
		LowStock:            lowStock,
		TopConsumed:         topConsumed,
	}, nil
}
