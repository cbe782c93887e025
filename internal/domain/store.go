package domain

import (
	"context"
	"errors"
)

var (
	// ErrStoreNotConfigured is returned by every operation of a store whose
	// credentials were not supplied at startup.
	ErrStoreNotConfigured = errors.New("data store is not configured")
	// ErrInvalidServiceID is returned when a service id cannot be represented
	// by the backend (for example a non-numeric id for a bigint column).
	ErrInvalidServiceID = errors.New("invalid service id")
)

// MasterStore persists master profiles.
type MasterStore interface {
	// UpsertMaster inserts the master or replaces the row with the same ID.
	UpsertMaster(ctx context.Context, master Master) error
}

// ServiceStore persists the service catalog.
type ServiceStore interface {
	InsertService(ctx context.Context, service Service) (Service, error)
	// ListServices returns the services owned by masterID.
	ListServices(ctx context.Context, masterID int64) ([]Service, error)
	// DeleteService removes the services matching filter and reports how many
	// rows were removed.
	DeleteService(ctx context.Context, filter ServiceFilter) (int64, error)
}

// BookingStore reads client bookings.
type BookingStore interface {
	// ListBookings returns the bookings of masterID joined with the service
	// name, ordered ascending by booking time.
	ListBookings(ctx context.Context, masterID int64) ([]Booking, error)
}

// Store is the full remote data store surface used by the bot.
type Store interface {
	MasterStore
	ServiceStore
	BookingStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
