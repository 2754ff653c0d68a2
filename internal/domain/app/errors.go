package app

import "errors"

var (
	// ErrAppNotFound is returned when an app is not found
	ErrAppNotFound = errors.New("app not found")

	// ErrAppNameRequired is returned when an app name is missing
	ErrAppNameRequired = errors.New("app name is required")

	// ErrDuplicateApp is returned when an app with the same name already exists
	ErrDuplicateApp = errors.New("app already exists")

	// ErrAPIKeyNotFound is returned when an API key is not found
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrAPIKeyNameRequired is returned when an API key name is missing
	ErrAPIKeyNameRequired = errors.New("API key name is required")

	// ErrInvalidAPIKey is returned when an API key fails authentication
	ErrInvalidAPIKey = errors.New("invalid API key")
)
