package migration

import (
	"github.com/opencat-io/opencat/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.AppModel{},
		&models.APIKeyModel{},
		&models.EntitlementModel{},
		&models.ProductModel{},
		&models.ProductEntitlementModel{},
		&models.OfferingModel{},
		&models.OfferingProductModel{},
		&models.SubscriberModel{},
		&models.TransactionModel{},
		&models.EventModel{},
		&models.WebhookEndpointModel{},
		&models.WebhookDeliveryModel{},
	}
}
