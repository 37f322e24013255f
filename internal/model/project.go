package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project represents a construction site that assets and consumables are assigned to.
// Withdrawal listings filter on it.
type Project struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Location  string         `gorm:"type:varchar(255)" json:"location"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
