package subscriber

import "errors"

var (
	// ErrSubscriberNotFound is returned when a subscriber is not found
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrAppUserIDRequired is returned when an app user ID is missing
	ErrAppUserIDRequired = errors.New("app user ID is required")

	// ErrTransactionNotFound is returned when a transaction is not found
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStoreTransactionIDRequired is returned when a store transaction ID is missing
	ErrStoreTransactionIDRequired = errors.New("store transaction ID is required")

	// ErrTerminalTransaction is returned when attempting to transition a
	// refunded transaction
	ErrTerminalTransaction = errors.New("transaction is in a terminal state")

	// ErrDuplicateTransaction is returned when a transaction with the same
	// store transaction ID already exists
	ErrDuplicateTransaction = errors.New("transaction already exists")
)
