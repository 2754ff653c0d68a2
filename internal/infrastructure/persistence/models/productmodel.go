package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// ProductModel represents the database persistence model for products
type ProductModel struct {
	ID              uint   `gorm:"primarykey"`
	SID             string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID           uint   `gorm:"not null;uniqueIndex:idx_app_store_identifier,priority:1"`
	StoreIdentifier string `gorm:"not null;size:255;uniqueIndex:idx_app_store_identifier,priority:2"`
	DisplayName     string `gorm:"size:255"`
	ProductType     string `gorm:"not null;size:20"`
	DurationDays    int    `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (ProductModel) TableName() string {
	return constants.TableProducts
}
