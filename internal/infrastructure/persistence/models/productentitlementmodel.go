package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// ProductEntitlementModel represents the product-to-entitlement mapping.
// Purchasing the product grants the entitlement.
type ProductEntitlementModel struct {
	ID            uint `gorm:"primarykey"`
	ProductID     uint `gorm:"not null;uniqueIndex:idx_product_entitlement,priority:1"`
	EntitlementID uint `gorm:"not null;uniqueIndex:idx_product_entitlement,priority:2;index"`
	CreatedAt     time.Time
}

// TableName specifies the table name for GORM
func (ProductEntitlementModel) TableName() string {
	return constants.TableProductEntitlements
}
