package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// SubscriberModel represents the database persistence model for subscribers
type SubscriberModel struct {
	ID         uint   `gorm:"primarykey"`
	SID        string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID      uint   `gorm:"not null;uniqueIndex:idx_app_user,priority:1"`
	AppUserID  string `gorm:"not null;size:255;uniqueIndex:idx_app_user,priority:2"`
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (SubscriberModel) TableName() string {
	return constants.TableSubscribers
}
