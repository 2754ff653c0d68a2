package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// EventModel represents the database persistence model for the event log.
// Rows are append-only; FannedOutAt is stamped once delivery rows exist.
type EventModel struct {
	ID           uint   `gorm:"primarykey"`
	SID          string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID        uint   `gorm:"not null;index:idx_app_id_id,priority:1"`
	SubscriberID uint   `gorm:"not null;index"`
	EventType    string `gorm:"not null;size:50"`
	Payload      datatypes.JSON
	FannedOutAt  *time.Time `gorm:"index"`
	CreatedAt    time.Time
}

// TableName specifies the table name for GORM
func (EventModel) TableName() string {
	return constants.TableEvents
}
