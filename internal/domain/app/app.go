// Package app provides domain models for registered applications and their
// API credentials. An App is the tenant boundary: subscribers, products,
// entitlements, events, and webhook endpoints all belong to exactly one app.
package app

import (
	"fmt"
	"time"
)

// App represents the application aggregate root.
type App struct {
	id                uint
	sid               string // Stripe-style public identifier (app_xxx)
	name              string
	appleBundleID     string
	googlePackageName string
	createdAt         time.Time
	updatedAt         time.Time
	version           int
}

// NewApp creates a new app.
func NewApp(sid, name, appleBundleID, googlePackageName string) (*App, error) {
	if sid == "" {
		return nil, fmt.Errorf("app SID is required")
	}
	if name == "" {
		return nil, ErrAppNameRequired
	}

	now := time.Now().UTC()
	return &App{
		sid:               sid,
		name:              name,
		appleBundleID:     appleBundleID,
		googlePackageName: googlePackageName,
		createdAt:         now,
		updatedAt:         now,
		version:           1,
	}, nil
}

// ReconstructApp reconstructs an app from persistence.
func ReconstructApp(
	id uint,
	sid, name, appleBundleID, googlePackageName string,
	createdAt, updatedAt time.Time,
	version int,
) (*App, error) {
	if id == 0 {
		return nil, fmt.Errorf("app ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("app SID is required")
	}
	if name == "" {
		return nil, ErrAppNameRequired
	}

	return &App{
		id:                id,
		sid:               sid,
		name:              name,
		appleBundleID:     appleBundleID,
		googlePackageName: googlePackageName,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
		version:           version,
	}, nil
}

// ID returns the app ID
func (a *App) ID() uint { return a.id }

// SID returns the public identifier
func (a *App) SID() string { return a.sid }

// Name returns the app name
func (a *App) Name() string { return a.name }

// AppleBundleID returns the App Store bundle identifier
func (a *App) AppleBundleID() string { return a.appleBundleID }

// GooglePackageName returns the Play Store package name
func (a *App) GooglePackageName() string { return a.googlePackageName }

// CreatedAt returns when the app was created
func (a *App) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns when the app was last updated
func (a *App) UpdatedAt() time.Time { return a.updatedAt }

// Version returns the aggregate version for optimistic locking
func (a *App) Version() int { return a.version }

// SetID sets the app ID (only for persistence layer use)
func (a *App) SetID(id uint) error {
	if a.id != 0 {
		return fmt.Errorf("app ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("app ID cannot be zero")
	}
	a.id = id
	return nil
}

// Rename changes the app name.
func (a *App) Rename(name string) error {
	if name == "" {
		return ErrAppNameRequired
	}
	if name == a.name {
		return nil
	}
	a.name = name
	a.updatedAt = time.Now().UTC()
	a.version++
	return nil
}

// UpdateStoreIdentifiers updates the platform store identifiers.
func (a *App) UpdateStoreIdentifiers(appleBundleID, googlePackageName string) {
	a.appleBundleID = appleBundleID
	a.googlePackageName = googlePackageName
	a.updatedAt = time.Now().UTC()
	a.version++
}
