package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateConsumableRequest struct {
	SKU          string `json:"sku" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Category     string `json:"category"`
	Unit         string `json:"unit" binding:"required"`
	OnHand       string `json:"on_hand"`
	ReorderLevel string `json:"reorder_level"`
	ProjectID    string `json:"project_id"`
}

type UpdateConsumableRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Unit         string `json:"unit"`
	ReorderLevel string `json:"reorder_level"`
	ProjectID    string `json:"project_id"`
}

type AdjustStockRequest struct {
	Delta string `json:"delta" binding:"required"`
	Note  string `json:"note"`
}

// ConsumableView carries the computed availability fields the list and detail
// pages show next to the raw ledger columns.
type ConsumableView struct {
	model.Consumable
	Available          decimal.Decimal `json:"available"`
	LowStock           bool            `json:"low_stock"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
}

type ConsumableService interface {
	Create(ctx context.Context, actor workflow.Actor, req CreateConsumableRequest) (*ConsumableView, error)
	Update(ctx context.Context, actor workflow.Actor, id string, req UpdateConsumableRequest) (*ConsumableView, error)
	Delete(ctx context.Context, actor workflow.Actor, id string) error
	Get(ctx context.Context, id string) (*ConsumableView, error)
	List(ctx context.Context, filter repository.ConsumableFilter) ([]ConsumableView, int64, error)
	Adjust(ctx context.Context, actor workflow.Actor, id string, req AdjustStockRequest) (*ConsumableView, error)
	StockHistory(ctx context.Context, id string, page, limit int) ([]model.StockTransaction, int64, error)
}

type consumableService struct {
	repo        repository.ConsumableRepository
	stockTxRepo repository.StockTxRepository
	auditRepo   repository.AuditRepository
	ledger      LedgerService
	txManager   repository.TransactionManager
}

func NewConsumableService(
	repo repository.ConsumableRepository,
	stockTxRepo repository.StockTxRepository,
	auditRepo repository.AuditRepository,
	ledger LedgerService,
	txManager repository.TransactionManager,
) ConsumableService {
	return &consumableService{
		repo:        repo,
		stockTxRepo: stockTxRepo,
		auditRepo:   auditRepo,
		ledger:      ledger,
		txManager:   txManager,
	}
}

func parseQuantity(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	q, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a decimal number", workflow.ErrValidation, field)
	}
	return q, nil
}

func parseOptionalProjectID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project_id", workflow.ErrValidation)
	}
	return &id, nil
}

func (s *consumableService) Create(ctx context.Context, actor workflow.Actor, req CreateConsumableRequest) (*ConsumableView, error) {
	onHand, err := parseQuantity(req.OnHand, "on_hand")
	if err != nil {
		return nil, err
	}
	if onHand.IsNegative() {
		return nil, fmt.Errorf("%w: on_hand cannot be negative", workflow.ErrValidation)
	}
	reorderLevel, err := parseQuantity(req.ReorderLevel, "reorder_level")
	if err != nil {
		return nil, err
	}
	projectID, err := parseOptionalProjectID(req.ProjectID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindBySKU(ctx, req.SKU); err == nil {
		return nil, fmt.Errorf("%w: SKU %s already exists", workflow.ErrValidation, req.SKU)
	}

	c := &model.Consumable{
		SKU:          req.SKU,
		Name:         req.Name,
		Category:     req.Category,
		Unit:         req.Unit,
		OnHand:       onHand,
		Reserved:     decimal.Zero,
		ReorderLevel: reorderLevel,
		ProjectID:    projectID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, c); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionCreateConsumable, c, map[string]interface{}{
			"sku": c.SKU, "on_hand": c.OnHand,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, c.ID.String())
}

func (s *consumableService) Update(ctx context.Context, actor workflow.Actor, id string, req UpdateConsumableRequest) (*ConsumableView, error) {
	consumableID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid consumable id", workflow.ErrValidation)
	}

	c, err := s.repo.FindByID(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}

	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Category != "" {
		c.Category = req.Category
	}
	if req.Unit != "" {
		c.Unit = req.Unit
	}
	if req.ReorderLevel != "" {
		reorderLevel, err := parseQuantity(req.ReorderLevel, "reorder_level")
		if err != nil {
			return nil, err
		}
		c.ReorderLevel = reorderLevel
	}
	if req.ProjectID != "" {
		projectID, err := parseOptionalProjectID(req.ProjectID)
		if err != nil {
			return nil, err
		}
		c.ProjectID = projectID
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, c); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionUpdateConsumable, c, nil)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, c.ID.String())
}

func (s *consumableService) Delete(ctx context.Context, actor workflow.Actor, id string) error {
	consumableID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid consumable id", workflow.ErrValidation)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.repo.FindByIDForUpdate(txCtx, consumableID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, id)
			}
			return err
		}
		if c.Reserved.IsPositive() {
			return fmt.Errorf("%w: %s has %s %s reserved by approved withdrawals",
				workflow.ErrValidation, c.SKU, c.Reserved, c.Unit)
		}
		if err := s.repo.Delete(txCtx, consumableID); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionDeleteConsumable, c, nil)
	})
}

func (s *consumableService) Get(ctx context.Context, id string) (*ConsumableView, error) {
	consumableID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid consumable id", workflow.ErrValidation)
	}

	c, err := s.repo.FindByID(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}

	counts, err := s.repo.PendingWithdrawalCounts(ctx, []uuid.UUID{c.ID})
	if err != nil {
		return nil, err
	}

	view := toConsumableView(c)
	view.PendingWithdrawals = counts[c.ID]
	return view, nil
}

func (s *consumableService) List(ctx context.Context, filter repository.ConsumableFilter) ([]ConsumableView, int64, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
	}
	counts, err := s.repo.PendingWithdrawalCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	views := make([]ConsumableView, 0, len(items))
	for i := range items {
		view := toConsumableView(&items[i])
		view.PendingWithdrawals = counts[items[i].ID]
		views = append(views, *view)
	}
	return views, total, nil
}

// Adjust applies a signed manual correction through the ledger so the stock
// transaction trail stays complete.
func (s *consumableService) Adjust(ctx context.Context, actor workflow.Actor, id string, req AdjustStockRequest) (*ConsumableView, error) {
	consumableID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid consumable id", workflow.ErrValidation)
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		return nil, fmt.Errorf("%w: delta must be a decimal number", workflow.ErrValidation)
	}
	if delta.IsZero() {
		return nil, fmt.Errorf("%w: delta cannot be zero", workflow.ErrValidation)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.ledger.Adjust(txCtx, consumableID, delta, req.Note)
		if err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionAdjustStock, c, map[string]interface{}{
			"delta": delta, "note": req.Note,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *consumableService) StockHistory(ctx context.Context, id string, page, limit int) ([]model.StockTransaction, int64, error) {
	consumableID, err := uuid.Parse(id)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid consumable id", workflow.ErrValidation)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.stockTxRepo.ListByConsumable(ctx, consumableID, page, limit)
}

func (s *consumableService) audit(ctx context.Context, actor workflow.Actor, action string, c *model.Consumable, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	return s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		EntityID:   c.ID.String(),
		EntityName: c.SKU,
		Details:    string(payload),
	})
}

func toConsumableView(c *model.Consumable) *ConsumableView {
	return &ConsumableView{
		Consumable: *c,
		Available:  c.Available(),
		LowStock:   c.Available().LessThanOrEqual(c.ReorderLevel),
	}
}
