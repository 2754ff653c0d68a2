package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// APIKeyModel represents the database persistence model for API keys.
// Only the SHA-256 hash of the key is stored.
type APIKeyModel struct {
	ID         uint   `gorm:"primarykey"`
	SID        string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID      uint   `gorm:"not null;index"`
	Name       string `gorm:"not null;size:100"`
	KeyHash    string `gorm:"not null;size:64;uniqueIndex"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// TableName specifies the table name for GORM
func (APIKeyModel) TableName() string {
	return constants.TableAPIKeys
}
