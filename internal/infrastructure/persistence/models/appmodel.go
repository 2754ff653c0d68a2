package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// AppModel represents the database persistence model for apps
// This is the anti-corruption layer between domain and database
type AppModel struct {
	ID                uint   `gorm:"primarykey"`
	SID               string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	Name              string `gorm:"not null;size:100;uniqueIndex"`
	AppleBundleID     string `gorm:"size:255"`
	GooglePackageName string `gorm:"size:255"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (AppModel) TableName() string {
	return constants.TableApps
}
