package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/carpool/internal/booking"
	"github.com/example/carpool/internal/geo"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
	"github.com/example/carpool/internal/storage"
)

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func summaries(trips []*models.Trip) []models.TripSummary {
	out := make([]models.TripSummary, 0, len(trips))
	for _, t := range trips {
		out = append(out, t.Summary())
	}
	return out
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("pageNumber"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}
	trips, total, err := s.Trips.ListTrips(r.Context(), (page-1)*size, size)
	if err != nil {
		s.storeError(w, err)
		return
	}
	totalPages := (total + size - 1) / size
	respond(w, http.StatusOK, models.Page[models.TripSummary]{
		Items:      summaries(trips),
		TotalCount: total,
		PageNumber: page,
		PageSize:   size,
		TotalPages: totalPages,
	})
}

func (s *Server) handleSearchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var day time.Time
	if v := q.Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			fail(w, http.StatusBadRequest, "Date must be YYYY-MM-DD.")
			return
		}
		day = parsed
	}
	trips, err := s.Trips.SearchTrips(r.Context(), q.Get("source"), q.Get("destination"), day)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, summaries(trips))
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.Trips.GetTrip(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, *trip)
}

func (s *Server) handleTripParticipants(w http.ResponseWriter, r *http.Request) {
	trip, err := s.Trips.GetTrip(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	parts := trip.Participants
	if parts == nil {
		parts = []models.TripParticipant{}
	}
	respond(w, http.StatusOK, parts)
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var in models.CreateTripInput
	if !decode(w, r, &in) {
		return
	}
	if in.AvailableSeats < 1 {
		fail(w, http.StatusBadRequest, "A trip needs at least one seat.")
		return
	}
	if !in.DepartureTime.After(time.Now()) {
		fail(w, http.StatusBadRequest, "Departure time must be in the future.")
		return
	}
	trip := &models.Trip{
		DriverID:          u.ID,
		DriverName:        u.FullName,
		DriverRating:      u.Rating,
		Source:            in.Source,
		SourceCoord:       in.SourceCoord,
		SourceCity:        in.SourceCity,
		Destination:       in.Destination,
		DestinationCoord:  in.DestinationCoord,
		DepartureTime:     in.DepartureTime,
		PricePerSeat:      in.PricePerSeat,
		AvailableSeats:    in.AvailableSeats,
		Status:            models.TripPending,
		Description:       in.Description,
		AcceptsDeliveries: in.AcceptsDeliveries,
		MaxDeliveryWeight: in.MaxDeliveryWeight,
	}
	if err := s.Trips.CreateTrip(r.Context(), trip); err != nil {
		s.storeError(w, err)
		return
	}
	s.indexTrip(trip)
	s.publish("trip", trip.ID, "", string(models.TripPending), u.ID)
	respond(w, http.StatusCreated, *trip)
}

// indexTrip registers a trip origin with the spatial index, geocoding the
// source when the client sent no coordinates.
func (s *Server) indexTrip(trip *models.Trip) {
	if s.Geo == nil {
		return
	}
	coord := trip.SourceCoord
	if coord == nil && s.Geocoder != nil {
		if c, err := s.Geocoder.Geocode(trip.Source); err == nil {
			coord = &c
		} else {
			s.logger.Warn("geocode failed", "place", trip.Source, "err", err)
		}
	}
	if coord == nil {
		return
	}
	s.Geo.Upsert(geo.TripPoint{TripID: trip.ID, Loc: *coord, DriverRating: trip.DriverRating, Open: true})
}

func (s *Server) handleCheckBooking(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	trip, err := s.Trips.GetTrip(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, booking.HasParticipation(u.ID, trip))
}

func (s *Server) handleBookTrip(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var in models.BookTripInput
	if !decode(w, r, &in) {
		return
	}
	trip, err := s.Trips.GetTrip(r.Context(), in.TripID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := booking.CanBook(u.ID, trip, in.SeatCount, time.Now()); err != nil {
		observability.BookingRejections.Inc()
		fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	joined := time.Now()
	if in.JoinedAt != nil {
		joined = *in.JoinedAt
	}
	seats := in.SeatCount
	part := models.TripParticipant{
		UserID:     u.ID,
		UserName:   u.FullName,
		JoinStatus: models.JoinApproved,
		SeatCount:  &seats,
		JoinedAt:   &joined,
	}
	if err := s.Trips.AddParticipant(r.Context(), trip.ID, part); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			observability.BookingRejections.Inc()
			fail(w, http.StatusConflict, booking.ErrNoSeats.Error())
			return
		}
		s.storeError(w, err)
		return
	}
	// first booking confirms the trip so the driver can later complete it
	if trip.Status == models.TripPending {
		if err := s.Trips.UpdateTripStatus(r.Context(), trip.ID, models.TripPending, models.TripConfirmed, ""); err == nil {
			s.publish("trip", trip.ID, string(models.TripPending), string(models.TripConfirmed), u.ID)
		}
	}
	s.holdPayment(r, trip, u.ID, in.SeatCount)
	observability.BookingsTotal.Inc()

	joinedStr := joined.Format(time.RFC3339)
	respond(w, http.StatusOK, models.BookingReply{
		TripID:    trip.ID,
		UserID:    u.ID,
		FullName:  u.FullName,
		SeatCount: in.SeatCount,
		Status:    "Confirmed",
		JoinedAt:  &joinedStr,
	})
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var in models.CancelTripInput
	if !decode(w, r, &in) {
		return
	}
	trip, err := s.Trips.GetTrip(r.Context(), in.TripID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := booking.CanCancelAsPassenger(u.ID, trip); err != nil {
		fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.Trips.RemoveParticipant(r.Context(), trip.ID, u.ID); err != nil {
		s.storeError(w, err)
		return
	}
	s.releasePayment(r, trip.ID, u.ID)
	respond(w, http.StatusOK, true)
}

func (s *Server) handleCancelTrip(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var in models.CancelTripInput
	if !decode(w, r, &in) {
		return
	}
	trip, err := s.Trips.GetTrip(r.Context(), in.TripID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := booking.CanCancelAsDriver(u.ID, trip, in.Reason); err != nil {
		fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.Trips.UpdateTripStatus(r.Context(), trip.ID, trip.Status, models.TripCancelled, in.Reason); err != nil {
		s.storeError(w, err)
		return
	}
	for _, p := range trip.Participants {
		if !p.IsDriver {
			s.releasePayment(r, trip.ID, p.UserID)
		}
	}
	if s.Geo != nil {
		s.Geo.Remove(trip.ID)
	}
	observability.TripsCancelled.Inc()
	s.publish("trip", trip.ID, string(trip.Status), string(models.TripCancelled), u.ID)
	respond(w, http.StatusOK, true)
}

func (s *Server) handleCompleteTrip(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	trip, err := s.Trips.GetTrip(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := booking.CanComplete(u.ID, trip); err != nil {
		fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.Trips.UpdateTripStatus(r.Context(), trip.ID, trip.Status, models.TripCompleted, ""); err != nil {
		s.storeError(w, err)
		return
	}
	for _, p := range trip.Participants {
		if !p.IsDriver {
			s.capturePayment(r, trip.ID, p.UserID)
		}
	}
	if s.Geo != nil {
		s.Geo.Remove(trip.ID)
	}
	observability.TripsCompleted.Inc()
	s.publish("trip", trip.ID, string(trip.Status), string(models.TripCompleted), u.ID)
	trip.Status = models.TripCompleted
	respond(w, http.StatusOK, *trip)
}

func (s *Server) handleMyTrips(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	trips, err := s.Trips.TripsByDriver(r.Context(), u.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, summaries(trips))
}

func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	trips, err := s.Trips.TripsByParticipant(r.Context(), u.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, summaries(trips))
}

// storeError maps storage failures onto envelope responses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, storage.ErrConflict):
		fail(w, http.StatusConflict, "The requested change conflicts with the current state.")
	default:
		s.logger.Error("storage error", "err", err)
		fail(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}
