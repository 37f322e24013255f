package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Consumable represents a non-returnable inventory line (cement, nails, fuel...).
// Availability is computed as OnHand - Reserved; Reserved is only ever bumped at
// the moment an Authorizer approves a batch, never by pending requests.
type Consumable struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU          string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Category     string          `gorm:"type:varchar(100);index" json:"category"`
	Unit         string          `gorm:"type:varchar(30);not null" json:"unit"` // bags, kg, m3, liters...
	OnHand       decimal.Decimal `gorm:"type:decimal(14,3);default:0;not null" json:"on_hand"`
	Reserved     decimal.Decimal `gorm:"type:decimal(14,3);default:0;not null" json:"reserved"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(14,3);default:0" json:"reorder_level"`
	ProjectID    *uuid.UUID      `gorm:"type:uuid;index" json:"project_id"`
	Project      *Project        `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Available returns the quantity open to new approvals.
func (c *Consumable) Available() decimal.Decimal {
	return c.OnHand.Sub(c.Reserved)
}

// StockTransaction type constants
const (
	StockTxReserve   = "RESERVE"   // approval reserved stock
	StockTxUnreserve = "UNRESERVE" // reservation released on cancellation
	StockTxRelease   = "RELEASE"   // physical hand-off consumed reserved stock
	StockTxAdjust    = "ADJUST"    // manual correction or post-cancel restock
)

// StockTransaction records every ledger mutation strictly, with post-mutation snapshots
type StockTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConsumableID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"consumable_id"`
	BatchID         *uuid.UUID      `gorm:"type:uuid;index" json:"batch_id"` // Nullable for manual adjustments
	TransactionType string          `gorm:"type:varchar(15);not null" json:"transaction_type"`
	QuantityChanged decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"quantity_changed"`
	OnHandAfter     decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"on_hand_after"`
	ReservedAfter   decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"reserved_after"`
	Note            string          `gorm:"type:text" json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
