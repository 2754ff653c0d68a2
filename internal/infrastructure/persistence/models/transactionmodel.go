package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/opencat-io/opencat/internal/shared/constants"
)

// TransactionModel represents the database persistence model for the
// transaction ledger. (AppID, Store, StoreTransactionID) is the ingestion
// idempotency key.
type TransactionModel struct {
	ID                 uint   `gorm:"primarykey"`
	SID                string `gorm:"column:sid;not null;size:20;uniqueIndex"`
	AppID              uint   `gorm:"not null;uniqueIndex:idx_store_txn,priority:1"`
	SubscriberID       uint   `gorm:"not null;index:idx_subscriber_status,priority:1"`
	ProductID          uint   `gorm:"not null;index"`
	Store              string `gorm:"not null;size:20;uniqueIndex:idx_store_txn,priority:2"`
	StoreTransactionID string `gorm:"not null;size:255;uniqueIndex:idx_store_txn,priority:3"`
	Status             string `gorm:"not null;size:20;index:idx_subscriber_status,priority:2;index:idx_status_expires,priority:1"`
	Environment        string `gorm:"not null;size:20;default:production"`
	PurchasedAt        time.Time
	ExpiresAt          *time.Time `gorm:"index:idx_status_expires,priority:2"`
	RefundedAt         *time.Time
	RawReceipt         datatypes.JSON
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (TransactionModel) TableName() string {
	return constants.TableTransactions
}
