package models

import (
	"time"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// WebhookDeliveryModel represents the database persistence model for webhook
// deliveries. The dispatcher's claim query hits idx_due (status, next_retry_at).
type WebhookDeliveryModel struct {
	ID             uint   `gorm:"primarykey"`
	SID            string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	EndpointID     uint   `gorm:"not null;uniqueIndex:idx_endpoint_event,priority:1"`
	EventID        uint   `gorm:"not null;uniqueIndex:idx_endpoint_event,priority:2;index"`
	Status         string `gorm:"not null;size:20;default:pending;index:idx_due,priority:1"`
	Attempts       int    `gorm:"not null;default:0"`
	NextRetryAt    *time.Time `gorm:"index:idx_due,priority:2"`
	LockedUntil    *time.Time
	LastError      string `gorm:"size:1000"`
	LastStatusCode int    `gorm:"not null;default:0"`
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (WebhookDeliveryModel) TableName() string {
	return constants.TableWebhookDeliveries
}
