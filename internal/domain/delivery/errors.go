package delivery

import "errors"

var (
	// ErrEndpointNotFound is returned when a webhook endpoint is not found
	ErrEndpointNotFound = errors.New("webhook endpoint not found")

	// ErrEndpointURLRequired is returned when an endpoint URL is missing
	ErrEndpointURLRequired = errors.New("endpoint URL is required")

	// ErrEndpointSecretRequired is returned when an endpoint secret is missing
	ErrEndpointSecretRequired = errors.New("endpoint secret is required")

	// ErrDeliveryNotFound is returned when a delivery is not found
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrTerminalDelivery is returned when attempting to transition a
	// delivered or dead-lettered delivery
	ErrTerminalDelivery = errors.New("delivery is in a terminal state")

	// ErrNotDeadLettered is returned when replaying a delivery that is not
	// dead-lettered
	ErrNotDeadLettered = errors.New("delivery is not dead-lettered")

	// ErrDeliveryClaimed is returned when a delivery is claimed by another worker
	ErrDeliveryClaimed = errors.New("delivery is claimed by another worker")
)
