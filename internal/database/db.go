package database

import (
	"constructlink/internal/model"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Role{},
		&model.Permission{},
		&model.Project{},
		&model.Asset{},
		&model.Consumable{},
		&model.StockTransaction{},
		&model.WithdrawalRequest{},
		&model.WithdrawalBatch{},
		&model.BatchItem{},
		&model.AuditLog{},
	)
	if err != nil {
		log.WithError(err).Warn("Failed to auto-migrate models")
	}

	return db, nil
}
