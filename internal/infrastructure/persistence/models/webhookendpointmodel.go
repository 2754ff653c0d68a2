package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// WebhookEndpointModel represents the database persistence model for webhook endpoints
type WebhookEndpointModel struct {
	ID          uint   `gorm:"primarykey"`
	SID         string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID       uint   `gorm:"not null;index"`
	URL         string `gorm:"not null;size:2048"`
	Secret      string `gorm:"not null;size:255"`
	Description string `gorm:"size:500"`
	Active      bool   `gorm:"not null;default:true;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (WebhookEndpointModel) TableName() string {
	return constants.TableWebhookEndpoints
}
