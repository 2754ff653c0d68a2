// Package constants defines shared constants used across the application.
package constants

// Pagination defaults
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Event listing defaults. Events are fetched with a cursor (since) and a
// limit rather than page numbers.
const (
	DefaultEventLimit = 50
	MaxEventLimit     = 500
)

// API key constants
const (
	// APIKeyHeaderName is the header carrying the API key.
	APIKeyHeaderName = "X-Api-Key"

	// APIKeySecretLength is the length of the random secret portion of an API key.
	APIKeySecretLength = 32
)

// Webhook signature header sent with every delivery attempt.
const (
	WebhookSignatureHeader = "X-Opencat-Signature"
	WebhookEventIDHeader   = "X-Opencat-Event-Id"
	WebhookDeliveryHeader  = "X-Opencat-Delivery-Id"
)

// Database table names
const (
	TableApps                = "apps"
	TableAPIKeys             = "api_keys"
	TableEntitlements        = "entitlements"
	TableProducts            = "products"
	TableProductEntitlements = "product_entitlements"
	TableOfferings           = "offerings"
	TableOfferingProducts    = "offering_products"
	TableSubscribers         = "subscribers"
	TableTransactions        = "transactions"
	TableEvents              = "events"
	TableWebhookEndpoints    = "webhook_endpoints"
	TableWebhookDeliveries   = "webhook_deliveries"
)
