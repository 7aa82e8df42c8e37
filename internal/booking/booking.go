// Package booking enforces trip booking eligibility and keeps the local
// seat accounting consistent. Checks here are advisory: they stop an
// obviously-invalid action before a round trip, while the backend stays
// the source of truth.
package booking

import (
	"errors"
	"strings"
	"time"

	"github.com/example/carpool/internal/identity"
	"github.com/example/carpool/internal/models"
)

const (
	// MaxSeatsPerBooking caps a single reservation.
	MaxSeatsPerBooking = 10
	// MinCancelReasonLen is the shortest acceptable driver cancellation reason.
	MinCancelReasonLen = 10
)

var (
	ErrNotAuthenticated = errors.New("you must be logged in")
	ErrOwnTrip          = errors.New("you cannot book your own trip as the driver")
	ErrTripNotOpen      = errors.New("this trip cannot be booked at the moment")
	ErrTripDeparted     = errors.New("this trip is in the past and cannot be booked")
	ErrNoSeats          = errors.New("no seats available")
	ErrSeatCount        = errors.New("requested seat count is not available")
	ErrAlreadyBooked    = errors.New("you have already booked this trip")
	ErrNotDriver        = errors.New("only the trip driver may perform this action")
	ErrNotCancellable   = errors.New("this trip can no longer be cancelled")
	ErrReasonTooShort   = errors.New("a cancellation reason of at least 10 characters is required")
	ErrNotConfirmed     = errors.New("this trip cannot be completed at the moment")
	ErrNoParticipation  = errors.New("you have no booking on this trip")
	ErrDriverSeatCancel = errors.New("drivers cancel the whole trip, not a seat")
)

// tripTransitions is the trip lifecycle table. Cancellation is only open
// pre-departure (Pending/Confirmed); Completed and Cancelled are terminal.
var tripTransitions = map[models.TripStatus]map[models.TripStatus]struct{}{
	models.TripPending: {
		models.TripConfirmed: {},
		models.TripCancelled: {},
	},
	models.TripConfirmed: {
		models.TripOngoing:   {},
		models.TripCompleted: {},
		models.TripCancelled: {},
	},
	models.TripOngoing: {
		models.TripCompleted: {},
	},
	models.TripCompleted: {},
	models.TripCancelled: {},
}

// CanTransitionTrip returns whether a trip may move between two statuses.
func CanTransitionTrip(from, to models.TripStatus) bool {
	allowed, ok := tripTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CanBook validates a passenger booking attempt. userID empty means the
// caller is not authenticated. All checks run locally; a nil return only
// means the request is worth sending.
func CanBook(userID models.UserID, trip *models.Trip, seatCount int, now time.Time) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	if trip == nil {
		return ErrTripNotOpen
	}
	if identity.IsTripDriver(userID, trip) {
		return ErrOwnTrip
	}
	if trip.Status != models.TripPending {
		return ErrTripNotOpen
	}
	if !trip.DepartureTime.After(now) {
		return ErrTripDeparted
	}
	if trip.AvailableSeats <= 0 {
		return ErrNoSeats
	}
	max := MaxSeatsPerBooking
	if trip.AvailableSeats < max {
		max = trip.AvailableSeats
	}
	if seatCount < 1 || seatCount > max {
		return ErrSeatCount
	}
	if HasParticipation(userID, trip) {
		return ErrAlreadyBooked
	}
	return nil
}

// HasParticipation scans the participant list for an approved-or-pending
// booking by the user. Fallback for when the check-booking endpoint fails.
func HasParticipation(userID models.UserID, trip *models.Trip) bool {
	if trip == nil {
		return false
	}
	for _, p := range trip.Participants {
		if p.IsDriver || identity.Same(p.UserID, trip.DriverID) {
			continue
		}
		if p.JoinStatus == models.JoinRejected {
			continue
		}
		if identity.Same(p.UserID, userID) {
			return true
		}
	}
	return false
}

// JoinStatusFromReply maps the backend's free-form booking status string
// onto the join enum. Unknown strings mean the request is still pending.
func JoinStatusFromReply(status string) models.JoinStatus {
	switch strings.TrimSpace(status) {
	case "Approved", "Confirmed":
		return models.JoinApproved
	case "Rejected":
		return models.JoinRejected
	default:
		return models.JoinPending
	}
}

// ApplyBooking folds a successful booking reply into the locally held trip.
// This is a display optimization only; the next full reload overwrites it.
func ApplyBooking(trip *models.Trip, reply models.BookingReply) models.TripParticipant {
	seats := reply.SeatCount
	if seats < 1 {
		seats = 1
	}
	p := models.TripParticipant{
		UserID:     reply.UserID,
		UserName:   reply.FullName,
		JoinStatus: JoinStatusFromReply(reply.Status),
		SeatCount:  &seats,
	}
	for _, existing := range trip.Participants {
		if identity.Same(existing.UserID, reply.UserID) {
			return existing
		}
	}
	trip.Participants = append(trip.Participants, p)
	trip.AvailableSeats -= seats
	if trip.AvailableSeats < 0 {
		trip.AvailableSeats = 0
	}
	return p
}

// BookedSeats sums approved passenger seats. The driver never counts, and
// pending requests are reported separately: approval workflow on the
// backend is not assumed, so available and booked seats are independent
// numbers that need not reconcile.
func BookedSeats(trip *models.Trip) int {
	if trip == nil {
		return 0
	}
	total := 0
	for _, p := range trip.Participants {
		if p.IsDriver || identity.Same(p.UserID, trip.DriverID) {
			continue
		}
		if p.JoinStatus != models.JoinApproved {
			continue
		}
		total += p.Seats()
	}
	return total
}

// PendingRequests counts passengers still awaiting approval.
func PendingRequests(trip *models.Trip) int {
	if trip == nil {
		return 0
	}
	n := 0
	for _, p := range trip.Participants {
		if p.IsDriver || identity.Same(p.UserID, trip.DriverID) {
			continue
		}
		if p.JoinStatus == models.JoinPending {
			n++
		}
	}
	return n
}

// CanCancelAsDriver validates a whole-trip cancellation by the driver.
func CanCancelAsDriver(userID models.UserID, trip *models.Trip, reason string) error {
	if trip == nil {
		return ErrNotCancellable
	}
	if !identity.IsTripDriver(userID, trip) {
		return ErrNotDriver
	}
	if trip.Status != models.TripPending && trip.Status != models.TripConfirmed {
		return ErrNotCancellable
	}
	if len(strings.TrimSpace(reason)) < MinCancelReasonLen {
		return ErrReasonTooShort
	}
	return nil
}

// CanCancelAsPassenger validates dropping the caller's own participation.
// The trip itself keeps its status.
func CanCancelAsPassenger(userID models.UserID, trip *models.Trip) error {
	if trip == nil {
		return ErrNoParticipation
	}
	if identity.IsTripDriver(userID, trip) {
		return ErrDriverSeatCancel
	}
	if !HasParticipation(userID, trip) {
		return ErrNoParticipation
	}
	return nil
}

// CanComplete validates the driver's manual completion. Only a confirmed
// or ongoing trip completes, and the transition is not reversible
// client-side.
func CanComplete(userID models.UserID, trip *models.Trip) error {
	if trip == nil {
		return ErrNotConfirmed
	}
	if !identity.IsTripDriver(userID, trip) {
		return ErrNotDriver
	}
	if trip.Status != models.TripConfirmed && trip.Status != models.TripOngoing {
		return ErrNotConfirmed
	}
	return nil
}
