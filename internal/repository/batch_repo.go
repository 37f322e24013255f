package repository

import (
	"context"
	"fmt"
	"time"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BatchRepository interface {
	Create(ctx context.Context, b *model.WithdrawalBatch) error
	CreateItem(ctx context.Context, item *model.BatchItem) error
	Update(ctx context.Context, b *model.WithdrawalBatch) error
	UpdateItemStatuses(ctx context.Context, batchID uuid.UUID, status string) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.WithdrawalBatch, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalBatch, error)
	List(ctx context.Context, filter BatchFilter) ([]model.WithdrawalBatch, int64, error)
	NextBatchReference(ctx context.Context) (string, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	TopConsumed(ctx context.Context, limit int) ([]ConsumedLine, error)
}

// BatchFilter narrows batch listings (mirrors the batch-list view filters).
type BatchFilter struct {
	Status    string
	ProjectID string
	DateFrom  string
	DateTo    string
	Receiver  string
	Page      int
	Limit     int
}

// ConsumedLine is an aggregate row for reporting: total released quantity per consumable.
type ConsumedLine struct {
	ConsumableID uuid.UUID `json:"consumable_id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	Total        string    `json:"total_quantity"`
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, b *model.WithdrawalBatch) error {
	return GetDB(ctx, r.db).Create(b).Error
}

func (r *batchRepository) CreateItem(ctx context.Context, item *model.BatchItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *batchRepository) Update(ctx context.Context, b *model.WithdrawalBatch) error {
	// Omit Items so a status save never rewrites line rows.
	return GetDB(ctx, r.db).Omit("Items").Save(b).Error
}

func (r *batchRepository) UpdateItemStatuses(ctx context.Context, batchID uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.BatchItem{}).
		Where("batch_id = ?", batchID).Update("status", status).Error
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WithdrawalBatch, error) {
	var b model.WithdrawalBatch
	if err := GetDB(ctx, r.db).Preload("Items").Preload("Items.Consumable").
		Preload("Project").Preload("Creator").First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *batchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalBatch, error) {
	db := GetDB(ctx, r.db)

	var b model.WithdrawalBatch
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	// Items are loaded separately so the lock stays on the batch row only.
	if err := db.Where("batch_id = ?", b.ID).Find(&b.Items).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func applyBatchFilter(q *gorm.DB, filter BatchFilter) *gorm.DB {
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

func (r *batchRepository) List(ctx context.Context, filter BatchFilter) ([]model.WithdrawalBatch, int64, error) {
	var list []model.WithdrawalBatch
	var total int64

	db := GetDB(ctx, r.db)
	if err := applyBatchFilter(db.Model(&model.WithdrawalBatch{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := applyBatchFilter(db.Model(&model.WithdrawalBatch{}), filter).
		Preload("Items").Preload("Project").Preload("Creator")
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// NextBatchReference produces a daily sequence like WB-20250901-00042.
// An advisory lock serializes concurrent creators so the sequence never collides.
func (r *batchRepository) NextBatchReference(ctx context.Context) (string, error) {
	db := GetDB(ctx, r.db)

	today := time.Now().Format("20060102")
	prefix := "WB-" + today + "-"

	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	var count int64
	if err := db.Model(&model.WithdrawalBatch{}).
		Where("batch_reference LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (r *batchRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := GetDB(ctx, r.db).Model(&model.WithdrawalBatch{}).
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

func (r *batchRepository) TopConsumed(ctx context.Context, limit int) ([]ConsumedLine, error) {
	var lines []ConsumedLine
	err := GetDB(ctx, r.db).Model(&model.BatchItem{}).
		Select("batch_items.consumable_id, c.sku, c.name, c.unit, SUM(batch_items.quantity)::text AS total").
		Joins("INNER JOIN withdrawal_batches wb ON wb.id = batch_items.batch_id").
		Joins("INNER JOIN consumables c ON c.id = batch_items.consumable_id").
		Where("wb.status = ?", model.StatusReleased).
		Group("batch_items.consumable_id, c.sku, c.name, c.unit").
		Order("SUM(batch_items.quantity) DESC").
		Limit(limit).
		Scan(&lines).Error
	return lines, err
}
