package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// OfferingModel represents the database persistence model for offerings
type OfferingModel struct {
	ID          uint   `gorm:"primarykey"`
	AppID       uint   `gorm:"not null;uniqueIndex:idx_app_offering_identifier,priority:1"`
	Identifier  string `gorm:"not null;size:100;uniqueIndex:idx_app_offering_identifier,priority:2"`
	DisplayName string `gorm:"size:255"`
	IsCurrent   bool   `gorm:"not null;default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (OfferingModel) TableName() string {
	return constants.TableOfferings
}

// OfferingProductModel represents the offering-to-product join table
type OfferingProductModel struct {
	ID         uint `gorm:"primarykey"`
	OfferingID uint `gorm:"not null;uniqueIndex:idx_offering_product,priority:1"`
	ProductID  uint `gorm:"not null;uniqueIndex:idx_offering_product,priority:2"`
	Position   int  `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

// TableName specifies the table name for GORM
func (OfferingProductModel) TableName() string {
	return constants.TableOfferingProducts
}
