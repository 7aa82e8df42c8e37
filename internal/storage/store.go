package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/carpool/internal/models"
)

var (
	// ErrNotFound means no entity with that id exists.
	ErrNotFound = errors.New("not found")
	// ErrConflict means an optimistic status update lost: the entity is no
	// longer in the expected status.
	ErrConflict = errors.New("status conflict")
)

// TripStore defines persistence operations for trips and their participants.
type TripStore interface {
	CreateTrip(ctx context.Context, t *models.Trip) error
	GetTrip(ctx context.Context, id int64) (*models.Trip, error)
	ListTrips(ctx context.Context, offset, limit int) ([]*models.Trip, int, error)
	SearchTrips(ctx context.Context, source, destination string, day time.Time) ([]*models.Trip, error)
	TripsByDriver(ctx context.Context, driverID models.UserID) ([]*models.Trip, error)
	TripsByParticipant(ctx context.Context, userID models.UserID) ([]*models.Trip, error)

	// UpdateTripStatus applies from->to only if the trip is still in from,
	// so two racing transitions cannot skip the lifecycle table.
	UpdateTripStatus(ctx context.Context, id int64, from, to models.TripStatus, reason string) error

	// AddParticipant books seats atomically: the participant row is added
	// and availableSeats decremented in one step, failing if seats ran out.
	AddParticipant(ctx context.Context, tripID int64, p models.TripParticipant) error
	RemoveParticipant(ctx context.Context, tripID int64, userID models.UserID) error
}

// DeliveryStore defines persistence operations for delivery requests.
type DeliveryStore interface {
	CreateDelivery(ctx context.Context, d *models.DeliveryRequest) error
	GetDelivery(ctx context.Context, id int64) (*models.DeliveryRequest, error)
	DeliveriesBySender(ctx context.Context, senderID models.UserID) ([]*models.DeliveryRequest, error)
	// DeliveriesSelectedForDriver lists requests whose selected trip belongs
	// to the driver and that still await a decision.
	DeliveriesSelectedForDriver(ctx context.Context, driverID models.UserID) ([]*models.DeliveryRequest, error)
	// DeliveriesForDriver lists requests the driver has accepted.
	DeliveriesForDriver(ctx context.Context, driverID models.UserID) ([]*models.DeliveryRequest, error)
	PendingDeliveries(ctx context.Context, tripID *int64) ([]*models.DeliveryRequest, error)

	// UpdateDeliveryStatus applies from->to with optimistic validation and
	// appends a history entry.
	UpdateDeliveryStatus(ctx context.Context, id int64, from, to models.DeliveryStatus, note *string) error
	// AssignTrip pins the selected trip (and later the accepting driver)
	// onto the request.
	AssignTrip(ctx context.Context, id int64, tripID int64, driverName string) error
	// ExpireOverdue moves pending requests whose window closed before now
	// into Expired, returning how many were swept.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}
