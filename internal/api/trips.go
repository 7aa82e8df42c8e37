package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/carpool/internal/booking"
	"github.com/example/carpool/internal/models"
)

func (c *Client) Trips(ctx context.Context, pageNumber, pageSize int) (models.Page[models.TripSummary], error) {
	q := url.Values{
		"pageNumber": []string{strconv.Itoa(pageNumber)},
		"pageSize":   []string{strconv.Itoa(pageSize)},
	}
	return get[models.Page[models.TripSummary]](ctx, c, "/Trip", q, "")
}

func (c *Client) Trip(ctx context.Context, id int64) (models.Trip, error) {
	if id <= 0 {
		return models.Trip{}, validationMsg("Invalid trip id.")
	}
	return get[models.Trip](ctx, c, fmt.Sprintf("/Trip/%d", id), nil, "")
}

func (c *Client) SearchTrips(ctx context.Context, source, destination, date string) ([]models.TripSummary, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("destination", destination)
	q.Set("date", date)
	return get[[]models.TripSummary](ctx, c, "/Trip/search", q, "")
}

func (c *Client) CreateTrip(ctx context.Context, in models.CreateTripInput) (models.Trip, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.Trip{}, err
	}
	if in.AvailableSeats < 1 {
		return models.Trip{}, validationMsg("A trip needs at least one seat.")
	}
	if !in.DepartureTime.After(time.Now()) {
		return models.Trip{}, validationMsg("Departure time must be in the future.")
	}
	return do[models.Trip](ctx, c, http.MethodPost, "/Trip", nil, in, s.Token)
}

// CheckBooking asks the backend whether the caller already has a booking.
func (c *Client) CheckBooking(ctx context.Context, tripID int64) (bool, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return false, err
	}
	return get[bool](ctx, c, fmt.Sprintf("/Trip/check-booking/%d", tripID), nil, s.Token)
}

// BookTrip runs the full local eligibility check, asks the backend for an
// existing booking (falling back to a participant scan if that call
// fails), submits, and folds the reply into the trip copy. The mutation of
// trip is provisional display state, reconciled on the next full reload.
func (c *Client) BookTrip(ctx context.Context, trip *models.Trip, seatCount int) (models.BookingReply, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.BookingReply{}, err
	}
	if err := booking.CanBook(s.User.ID, trip, seatCount, time.Now()); err != nil {
		return models.BookingReply{}, validationErr(err)
	}
	if booked, err := c.CheckBooking(ctx, trip.ID); err == nil && booked {
		return models.BookingReply{}, validationErr(booking.ErrAlreadyBooked)
	}
	// CheckBooking failure falls through: CanBook already scanned the
	// local participant list.

	if err := c.begin(tripKey(trip.ID)); err != nil {
		return models.BookingReply{}, err
	}
	defer c.end(tripKey(trip.ID))

	now := time.Now()
	in := models.BookTripInput{TripID: trip.ID, UserID: s.User.ID, SeatCount: seatCount, JoinedAt: &now}
	reply, err := do[models.BookingReply](ctx, c, http.MethodPost, "/Trip/book", nil, in, s.Token)
	if err != nil {
		return models.BookingReply{}, err
	}
	booking.ApplyBooking(trip, reply)
	return reply, nil
}

func (c *Client) CancelTripAsPassenger(ctx context.Context, trip *models.Trip) (bool, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return false, err
	}
	if err := booking.CanCancelAsPassenger(s.User.ID, trip); err != nil {
		return false, validationErr(err)
	}
	if err := c.begin(tripKey(trip.ID)); err != nil {
		return false, err
	}
	defer c.end(tripKey(trip.ID))
	in := models.CancelTripInput{TripID: trip.ID, UserID: s.User.ID}
	return do[bool](ctx, c, http.MethodPost, "/Trip/cancel/passenger", nil, in, s.Token)
}

// CancelTripAsDriver cancels the whole trip. The reason length is checked
// locally so an empty form never costs a round trip.
func (c *Client) CancelTripAsDriver(ctx context.Context, trip *models.Trip, reason string) (bool, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return false, err
	}
	if err := booking.CanCancelAsDriver(s.User.ID, trip, reason); err != nil {
		return false, validationErr(err)
	}
	if err := c.begin(tripKey(trip.ID)); err != nil {
		return false, err
	}
	defer c.end(tripKey(trip.ID))
	in := models.CancelTripInput{TripID: trip.ID, UserID: s.User.ID, Reason: reason}
	return do[bool](ctx, c, http.MethodPost, "/Trip/cancel/driver", nil, in, s.Token)
}

// CompleteTrip marks a confirmed trip completed; driver only, manual, and
// not reversible from the client.
func (c *Client) CompleteTrip(ctx context.Context, trip *models.Trip) (models.Trip, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.Trip{}, err
	}
	if err := booking.CanComplete(s.User.ID, trip); err != nil {
		return models.Trip{}, validationErr(err)
	}
	if err := c.begin(tripKey(trip.ID)); err != nil {
		return models.Trip{}, err
	}
	defer c.end(tripKey(trip.ID))
	return do[models.Trip](ctx, c, http.MethodPost, fmt.Sprintf("/Trip/complete/%d", trip.ID), nil, nil, s.Token)
}

func (c *Client) MyTrips(ctx context.Context) ([]models.TripSummary, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return get[[]models.TripSummary](ctx, c, "/Trip/my-trips", nil, s.Token)
}

func (c *Client) MyBookings(ctx context.Context) ([]models.TripSummary, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return get[[]models.TripSummary](ctx, c, "/Trip/my-bookings", nil, s.Token)
}

func (c *Client) TripParticipants(ctx context.Context, tripID int64) ([]models.TripParticipant, error) {
	return get[[]models.TripParticipant](ctx, c, fmt.Sprintf("/Trip/%d/participants", tripID), nil, "")
}
