package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetStatus constants. Durable assets cycle between AVAILABLE and WITHDRAWN
// through the withdrawal workflow; RETURN_PENDING marks an asset whose released
// withdrawal was canceled but whose physical return has not been reconciled yet.
const (
	AssetStatusAvailable     = "AVAILABLE"
	AssetStatusWithdrawn     = "WITHDRAWN"
	AssetStatusReturnPending = "RETURN_PENDING"
	AssetStatusRetired       = "RETIRED"
)

// Asset represents a durable, returnable piece of equipment
type Asset struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Ref             string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"ref"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Category        string          `gorm:"type:varchar(100);index" json:"category"`
	Status          string          `gorm:"type:varchar(30);default:'AVAILABLE';not null" json:"status"`
	ProjectID       *uuid.UUID      `gorm:"type:uuid;index" json:"project_id"`
	Project         *Project        `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	AcquisitionCost decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"acquisition_cost"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}
