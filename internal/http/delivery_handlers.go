package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/example/carpool/internal/delivery"
	"github.com/example/carpool/internal/identity"
	"github.com/example/carpool/internal/matcher"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
)

func (s *Server) handleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var in models.CreateDeliveryInput
	if !decode(w, r, &in) {
		return
	}
	if in.Weight <= 0 {
		fail(w, http.StatusBadRequest, "Weight must be greater than zero.")
		return
	}
	if !in.WindowEnd.After(in.WindowStart) {
		fail(w, http.StatusBadRequest, "The delivery window end must be after its start.")
		return
	}
	start, end := in.WindowStart, in.WindowEnd
	d := &models.DeliveryRequest{
		SenderID:        u.ID,
		SenderName:      u.FullName,
		ReceiverPhone:   in.ReceiverPhone,
		SourceLocation:  in.SourceLocation,
		DropoffLocation: in.DropoffLocation,
		Weight:          in.Weight,
		Price:           in.Price,
		ItemDescription: in.ItemDescription,
		Status:          models.DeliveryPending,
		WindowStart:     &start,
		WindowEnd:       &end,
	}
	if err := s.Deliveries.CreateDelivery(r.Context(), d); err != nil {
		s.storeError(w, err)
		return
	}
	observability.DeliveriesCreated.Inc()
	s.publish("delivery", d.ID, "", string(models.DeliveryPending), u.ID)

	// push an offer at the nearest suitable driver right away
	if s.Matcher != nil {
		if origin, ok := s.resolveCoord(d.SourceLocation); ok {
			go s.Matcher.Match(context.Background(), d, origin)
		}
	}
	respond(w, http.StatusCreated, *d)
}

// resolveCoord geocodes a free-text location, reporting false when no
// geocoder is wired or the lookup fails.
func (s *Server) resolveCoord(place string) (models.Coord, bool) {
	if s.Geocoder == nil {
		return models.Coord{}, false
	}
	c, err := s.Geocoder.Geocode(place)
	if err != nil {
		s.logger.Warn("geocode failed", "place", place, "err", err)
		return models.Coord{}, false
	}
	return c, true
}

// canView allows the sender and, once a trip is selected, its driver.
func (s *Server) canView(r *http.Request, u *models.User, d *models.DeliveryRequest) bool {
	if identity.IsOwner(u.ID, d.SenderID) {
		return true
	}
	if d.TripID != nil {
		if trip, err := s.Trips.GetTrip(r.Context(), *d.TripID); err == nil {
			return identity.IsTripDriver(u.ID, trip)
		}
	}
	return false
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, err := s.Deliveries.GetDelivery(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !s.canView(r, u, d) {
		fail(w, http.StatusForbidden, "You may not view this delivery request.")
		return
	}
	respond(w, http.StatusOK, *d)
}

func (s *Server) handleMatchingTrips(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, err := s.Deliveries.GetDelivery(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !identity.IsOwner(u.ID, d.SenderID) {
		fail(w, http.StatusForbidden, "Only the sender may list matching trips.")
		return
	}
	if s.Matcher != nil {
		if origin, ok := s.resolveCoord(d.SourceLocation); ok {
			cands := s.Matcher.Candidates(r.Context(), d, origin)
			out := make([]models.TripSummary, 0, len(cands))
			for _, c := range cands {
				out = append(out, c.Trip.Summary())
			}
			respond(w, http.StatusOK, out)
			return
		}
	}
	// no spatial index available: fall back to a plain store scan
	trips, err := s.Trips.SearchTrips(r.Context(), "", "", time.Time{})
	if err != nil {
		s.storeError(w, err)
		return
	}
	out := make([]models.TripSummary, 0, len(trips))
	for _, t := range trips {
		if matcher.Eligible(t, d) {
			out = append(out, t.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	respond(w, http.StatusOK, out)
}

func (s *Server) handlePendingDeliveries(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	pending, err := s.Deliveries.PendingDeliveries(r.Context(), nil)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if v := r.URL.Query().Get("tripId"); v != "" {
		tripID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(w, http.StatusBadRequest, "Invalid trip id.")
			return
		}
		trip, err := s.Trips.GetTrip(r.Context(), tripID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		if !identity.IsTripDriver(u.ID, trip) {
			fail(w, http.StatusForbidden, "Only the trip driver may scope by trip.")
			return
		}
		scoped := make([]*models.DeliveryRequest, 0, len(pending))
		for _, d := range pending {
			if matcher.Eligible(trip, d) {
				scoped = append(scoped, d)
			}
		}
		pending = scoped
	}
	respond(w, http.StatusOK, derefAll(pending))
}

func derefAll(in []*models.DeliveryRequest) []models.DeliveryRequest {
	out := make([]models.DeliveryRequest, 0, len(in))
	for _, d := range in {
		out = append(out, *d)
	}
	return out
}

func (s *Server) handleSelectedForMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	list, err := s.Deliveries.DeliveriesSelectedForDriver(r.Context(), u.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, derefAll(list))
}

func (s *Server) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	list, err := s.Deliveries.DeliveriesBySender(r.Context(), u.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, derefAll(list))
}

func (s *Server) handleMyDeliveries(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	list, err := s.Deliveries.DeliveriesForDriver(r.Context(), u.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, derefAll(list))
}

// applyTransition runs the optimistic status update, bumps the metric and
// publishes the lifecycle event.
func (s *Server) applyTransition(w http.ResponseWriter, r *http.Request, d *models.DeliveryRequest, to models.DeliveryStatus, note *string, actor models.UserID) bool {
	if err := s.Deliveries.UpdateDeliveryStatus(r.Context(), d.ID, d.Status, to, note); err != nil {
		s.storeError(w, err)
		return false
	}
	observability.DeliveryTransitions.WithLabelValues(string(to)).Inc()
	s.publish("delivery", d.ID, string(d.Status), string(to), actor)
	return true
}

func (s *Server) respondReloaded(w http.ResponseWriter, r *http.Request, id int64) {
	d, err := s.Deliveries.GetDelivery(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, *d)
}

func (s *Server) handleSelectTrip(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, err := s.Deliveries.GetDelivery(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !identity.IsOwner(u.ID, d.SenderID) {
		fail(w, http.StatusForbidden, "Only the sender may select a trip.")
		return
	}
	if !delivery.Can(d.Status, delivery.ActionSelectTrip) {
		fail(w, http.StatusUnprocessableEntity, "A trip can only be selected while the request is pending.")
		return
	}
	var in models.SelectTripInput
	if !decode(w, r, &in) {
		return
	}
	trip, err := s.Trips.GetTrip(r.Context(), in.TripID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !matcher.Eligible(trip, d) {
		fail(w, http.StatusUnprocessableEntity, "This trip cannot carry the delivery.")
		return
	}
	if err := s.Deliveries.AssignTrip(r.Context(), d.ID, trip.ID, trip.DriverName); err != nil {
		s.storeError(w, err)
		return
	}
	if !s.applyTransition(w, r, d, models.DeliveryTripSelected, in.Note, u.ID) {
		return
	}
	s.respondReloaded(w, r, d.ID)
}

// requireAssignedDriver loads the delivery and checks the caller drives
// its selected trip.
func (s *Server) requireAssignedDriver(w http.ResponseWriter, r *http.Request, u *models.User) (*models.DeliveryRequest, bool) {
	d, err := s.Deliveries.GetDelivery(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return nil, false
	}
	if d.TripID == nil {
		fail(w, http.StatusUnprocessableEntity, "No trip has been selected for this request.")
		return nil, false
	}
	trip, err := s.Trips.GetTrip(r.Context(), *d.TripID)
	if err != nil {
		s.storeError(w, err)
		return nil, false
	}
	if !identity.IsTripDriver(u.ID, trip) {
		fail(w, http.StatusForbidden, "Only the selected trip's driver may do this.")
		return nil, false
	}
	return d, true
}

func (s *Server) handleAcceptDelivery(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, ok := s.requireAssignedDriver(w, r, u)
	if !ok {
		return
	}
	if v := r.URL.Query().Get("tripId"); v != "" {
		if tripID, err := strconv.ParseInt(v, 10, 64); err != nil || tripID != *d.TripID {
			fail(w, http.StatusUnprocessableEntity, "The trip does not match this request.")
			return
		}
	}
	if !delivery.Can(d.Status, delivery.ActionAccept) {
		fail(w, http.StatusUnprocessableEntity, "This request can no longer be accepted.")
		return
	}
	if !s.applyTransition(w, r, d, models.DeliveryAccepted, nil, u.ID) {
		return
	}
	s.respondReloaded(w, r, d.ID)
}

func (s *Server) handleRejectDelivery(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, ok := s.requireAssignedDriver(w, r, u)
	if !ok {
		return
	}
	if !delivery.Can(d.Status, delivery.ActionReject) {
		fail(w, http.StatusUnprocessableEntity, "This request can no longer be rejected.")
		return
	}
	if !s.applyTransition(w, r, d, models.DeliveryRejected, nil, u.ID) {
		return
	}
	s.respondReloaded(w, r, d.ID)
}

func (s *Server) handleUpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, ok := s.requireAssignedDriver(w, r, u)
	if !ok {
		return
	}
	var in models.UpdateDeliveryStatusInput
	if !decode(w, r, &in) {
		return
	}
	if !delivery.Can(d.Status, delivery.ActionUpdateStatus) || !delivery.CanTransition(d.Status, in.Status) {
		fail(w, http.StatusUnprocessableEntity, "This status change is not allowed.")
		return
	}
	if !s.applyTransition(w, r, d, in.Status, in.Note, u.ID) {
		return
	}
	s.respondReloaded(w, r, d.ID)
}

func (s *Server) handleCancelDelivery(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	d, err := s.Deliveries.GetDelivery(r.Context(), pathID(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !identity.IsOwner(u.ID, d.SenderID) {
		fail(w, http.StatusForbidden, "Only the sender may cancel a request.")
		return
	}
	if !delivery.CanCancel(d.Status) {
		fail(w, http.StatusUnprocessableEntity, "This request can no longer be cancelled.")
		return
	}
	if !s.applyTransition(w, r, d, models.DeliveryCancelled, nil, u.ID) {
		return
	}
	s.respondReloaded(w, r, d.ID)
}

func (s *Server) handleCheckExpired(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(w, r); !ok {
		return
	}
	n, err := s.Deliveries.ExpireOverdue(r.Context(), time.Now())
	if err != nil {
		s.storeError(w, err)
		return
	}
	respond(w, http.StatusOK, n)
}
