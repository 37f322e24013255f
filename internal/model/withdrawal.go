package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal status constants, shared by single-asset requests and consumable
// batches. PENDING_VERIFICATION is the initial status; RETURNED and CANCELED
// are terminal.
const (
	StatusPendingVerification = "PENDING_VERIFICATION"
	StatusPendingApproval     = "PENDING_APPROVAL"
	StatusApproved            = "APPROVED"
	StatusReleased            = "RELEASED"
	StatusReturned            = "RETURNED"
	StatusCanceled            = "CANCELED"
)

// Cancellation reason constants. ReasonOther requires free-text detail.
const (
	CancelReasonNoLongerNeeded = "NO_LONGER_NEEDED"
	CancelReasonWrongItems     = "WRONG_ITEMS"
	CancelReasonDuplicate      = "DUPLICATE"
	CancelReasonOther          = "OTHER"
)

// Asset return status declared when canceling an already-released withdrawal.
const (
	ReturnStatusReturned      = "RETURNED"
	ReturnStatusPendingReturn = "PENDING_RETURN"
)

// Return condition for durable assets
const (
	ReturnConditionGood    = "GOOD"
	ReturnConditionDamaged = "DAMAGED"
)

// WithdrawalRequest is the single-asset, returnable workflow entity
type WithdrawalRequest struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AssetID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"asset_id"`
	Asset             *Asset     `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	ProjectID         *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	Project           *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ReceiverFirstName string     `gorm:"type:varchar(100);not null" json:"receiver_first_name"`
	ReceiverLastName  string     `gorm:"type:varchar(100);not null" json:"receiver_last_name"`
	ReceiverContact   string     `gorm:"type:varchar(100)" json:"receiver_contact"`
	Purpose           string     `gorm:"type:text;not null" json:"purpose"`
	Notes             string     `gorm:"type:text" json:"notes"`
	ExpectedReturn    *time.Time `json:"expected_return"`
	Status            string     `gorm:"type:varchar(30);default:'PENDING_VERIFICATION';not null;index" json:"status"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator   *User     `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	VerifiedBy *uuid.UUID `gorm:"type:uuid" json:"verified_by"`
	VerifiedAt *time.Time `json:"verified_at"`
	ApprovedBy *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`
	ReleasedBy *uuid.UUID `gorm:"type:uuid" json:"released_by"`
	ReleasedAt *time.Time `json:"released_at"`
	ReturnedAt *time.Time `json:"returned_at"`

	ReturnCondition   string `gorm:"type:varchar(20)" json:"return_condition,omitempty"`
	DamageDescription string `gorm:"type:text" json:"damage_description,omitempty"`

	CanceledBy        *uuid.UUID `gorm:"type:uuid" json:"canceled_by"`
	CanceledAt        *time.Time `json:"canceled_at"`
	CancelReason      string     `gorm:"type:varchar(30)" json:"cancel_reason,omitempty"`
	CancelDetail      string     `gorm:"type:text" json:"cancel_detail,omitempty"`
	AssetReturnStatus string     `gorm:"type:varchar(20)" json:"asset_return_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overdue reports whether a released request has passed its expected return date.
func (w *WithdrawalRequest) Overdue(now time.Time) bool {
	return w.Status == StatusReleased && w.ExpectedReturn != nil && w.ExpectedReturn.Before(now)
}

// WithdrawalBatch is the multi-item consumable workflow entity. Consumables are
// non-returnable, so batches never reach RETURNED.
type WithdrawalBatch struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchReference    string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"batch_reference"`
	ProjectID         *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	Project           *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ReceiverFirstName string     `gorm:"type:varchar(100);not null" json:"receiver_first_name"`
	ReceiverLastName  string     `gorm:"type:varchar(100);not null" json:"receiver_last_name"`
	ReceiverContact   string     `gorm:"type:varchar(100)" json:"receiver_contact"`
	Purpose           string     `gorm:"type:text;not null" json:"purpose"`
	Notes             string     `gorm:"type:text" json:"notes"`
	Status            string     `gorm:"type:varchar(30);default:'PENDING_VERIFICATION';not null;index" json:"status"`

	TotalQuantity decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"total_quantity"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator   *User     `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	VerifiedBy  *uuid.UUID `gorm:"type:uuid" json:"verified_by"`
	VerifiedAt  *time.Time `json:"verified_at"`
	ApprovedBy  *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ReleasedBy  *uuid.UUID `gorm:"type:uuid" json:"released_by"`
	ReleaseDate *time.Time `json:"release_date"`

	CanceledBy            *uuid.UUID `gorm:"type:uuid" json:"canceled_by"`
	CanceledAt            *time.Time `json:"canceled_at"`
	CancelReason          string     `gorm:"type:varchar(30)" json:"cancel_reason,omitempty"`
	CancelDetail          string     `gorm:"type:text" json:"cancel_detail,omitempty"`
	AssetReturnStatus     string     `gorm:"type:varchar(20)" json:"asset_return_status,omitempty"`
	PendingReconciliation bool       `gorm:"default:false" json:"pending_reconciliation"`

	Items []BatchItem `gorm:"foreignKey:BatchID" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchItem represents one consumable line within a batch
type BatchItem struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"batch_id"`
	ConsumableID uuid.UUID  `gorm:"type:uuid;not null;index" json:"consumable_id"`
	Consumable   Consumable `gorm:"foreignKey:ConsumableID" json:"-"`

	Quantity decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"quantity"`
	// Snapshots taken at batch creation time. Informational only, the approval
	// guard always re-reads live availability.
	Unit            string          `gorm:"type:varchar(30);not null" json:"unit"`
	Category        string          `gorm:"type:varchar(100)" json:"category"`
	AvailableBefore decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"available_before"`

	Status    string    `gorm:"type:varchar(30);default:'PENDING_VERIFICATION';not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
