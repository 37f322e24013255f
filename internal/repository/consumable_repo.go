package repository

import (
	"context"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConsumableRepository interface {
	Create(ctx context.Context, c *model.Consumable) error
	Update(ctx context.Context, c *model.Consumable) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Consumable, error)
	FindBySKU(ctx context.Context, sku string) (*model.Consumable, error)
	// FindByIDForUpdate takes a row-level lock; the ledger's check-then-mutate
	// discipline depends on it being called inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Consumable, error)
	UpdateQuantities(ctx context.Context, id uuid.UUID, onHand, reserved decimal.Decimal) error
	List(ctx context.Context, filter ConsumableFilter) ([]model.Consumable, int64, error)
	PendingWithdrawalCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error)
}

// ConsumableFilter narrows consumable listings
type ConsumableFilter struct {
	Category  string
	ProjectID string
	Search    string
	LowStock  bool
	Page      int
	Limit     int
}

type consumableRepository struct {
	db *gorm.DB
}

func NewConsumableRepository(db *gorm.DB) ConsumableRepository {
	return &consumableRepository{db: db}
}

func (r *consumableRepository) Create(ctx context.Context, c *model.Consumable) error {
	return GetDB(ctx, r.db).Create(c).Error
}

func (r *consumableRepository) Update(ctx context.Context, c *model.Consumable) error {
	return GetDB(ctx, r.db).Save(c).Error
}

func (r *consumableRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Consumable{}).Error
}

func (r *consumableRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Consumable, error) {
	var c model.Consumable
	if err := GetDB(ctx, r.db).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consumableRepository) FindBySKU(ctx context.Context, sku string) (*model.Consumable, error) {
	var c model.Consumable
	if err := GetDB(ctx, r.db).Where("sku = ?", sku).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consumableRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Consumable, error) {
	var c model.Consumable
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consumableRepository) UpdateQuantities(ctx context.Context, id uuid.UUID, onHand, reserved decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.Consumable{}).Where("id = ?", id).
		Updates(map[string]interface{}{"on_hand": onHand, "reserved": reserved}).Error
}

func (r *consumableRepository) List(ctx context.Context, filter ConsumableFilter) ([]model.Consumable, int64, error) {
	var items []model.Consumable
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.ProjectID != "" {
			q = q.Where("project_id = ?", filter.ProjectID)
		}
		if filter.Search != "" {
			q = q.Where("name ILIKE ? OR sku ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.LowStock {
			q = q.Where("on_hand - reserved <= reorder_level")
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := apply(db.Model(&model.Consumable{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db.Model(&model.Consumable{}).Preload("Project")).
		Order("name ASC").Offset(offset).Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// PendingWithdrawalCounts returns, per consumable, how many batch lines sit in a
// pre-approval status. Advisory only, pending batches hold no stock.
func (r *consumableRepository) PendingWithdrawalCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]int64{}, nil
	}

	type row struct {
		ConsumableID uuid.UUID
		Count        int64
	}
	var rows []row
	err := GetDB(ctx, r.db).Model(&model.BatchItem{}).
		Select("batch_items.consumable_id AS consumable_id, COUNT(*) AS count").
		Joins("INNER JOIN withdrawal_batches wb ON wb.id = batch_items.batch_id").
		Where("batch_items.consumable_id IN ?", ids).
		Where("wb.status IN ?", []string{model.StatusPendingVerification, model.StatusPendingApproval}).
		Group("batch_items.consumable_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, rw := range rows {
		counts[rw.ConsumableID] = rw.Count
	}
	return counts, nil
}
