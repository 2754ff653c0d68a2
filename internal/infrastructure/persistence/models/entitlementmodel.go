package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// EntitlementModel represents the database persistence model for entitlement
// definitions. Identifier is the stable key clients check ("premium").
type EntitlementModel struct {
	ID          uint   `gorm:"primarykey"`
	SID         string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID       uint   `gorm:"not null;uniqueIndex:idx_app_identifier,priority:1"`
	Identifier  string `gorm:"not null;size:100;uniqueIndex:idx_app_identifier,priority:2"`
	DisplayName string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (EntitlementModel) TableName() string {
	return constants.TableEntitlements
}
