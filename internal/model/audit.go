package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateWithdrawal  = "CREATE_WITHDRAWAL"
	ActionVerifyWithdrawal  = "VERIFY_WITHDRAWAL"
	ActionApproveWithdrawal = "APPROVE_WITHDRAWAL"
	ActionReleaseWithdrawal = "RELEASE_WITHDRAWAL"
	ActionReturnWithdrawal  = "RETURN_WITHDRAWAL"
	ActionCancelWithdrawal  = "CANCEL_WITHDRAWAL"

	ActionCreateBatch  = "CREATE_BATCH"
	ActionVerifyBatch  = "VERIFY_BATCH"
	ActionApproveBatch = "APPROVE_BATCH"
	ActionReleaseBatch = "RELEASE_BATCH"
	ActionCancelBatch  = "CANCEL_BATCH"

	ActionCreateAsset      = "CREATE_ASSET"
	ActionUpdateAsset      = "UPDATE_ASSET"
	ActionDeleteAsset      = "DELETE_ASSET"
	ActionCreateConsumable = "CREATE_CONSUMABLE"
	ActionUpdateConsumable = "UPDATE_CONSUMABLE"
	ActionDeleteConsumable = "DELETE_CONSUMABLE"
	ActionAdjustStock      = "ADJUST_STOCK"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
