package httpapi

import (
	"fmt"
	"net/http"

	"github.com/example/carpool/internal/models"
)

func intentKey(tripID int64, userID models.UserID) string {
	return fmt.Sprintf("%d:%s", tripID, userID)
}

// holdPayment places a manual-capture hold for a granted booking. Holds
// are best-effort: a payment failure is logged and the seat stands, the
// fare is settled out of band.
func (s *Server) holdPayment(r *http.Request, trip *models.Trip, userID models.UserID, seats int) {
	if s.Payments == nil || trip.PricePerSeat <= 0 {
		return
	}
	id, err := s.Payments.HoldBooking(r.Context(), seats, trip.PricePerSeat, "eur", "")
	if err != nil {
		s.logger.Warn("payment hold failed", "trip", trip.ID, "user", userID, "err", err)
		return
	}
	s.pmu.Lock()
	s.intents[intentKey(trip.ID, userID)] = id
	s.pmu.Unlock()
}

func (s *Server) takeIntent(tripID int64, userID models.UserID) (string, bool) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	key := intentKey(tripID, userID)
	id, ok := s.intents[key]
	if ok {
		delete(s.intents, key)
	}
	return id, ok
}

func (s *Server) releasePayment(r *http.Request, tripID int64, userID models.UserID) {
	if s.Payments == nil {
		return
	}
	if id, ok := s.takeIntent(tripID, userID); ok {
		if err := s.Payments.Cancel(r.Context(), id); err != nil {
			s.logger.Warn("payment release failed", "trip", tripID, "user", userID, "err", err)
		}
	}
}

func (s *Server) capturePayment(r *http.Request, tripID int64, userID models.UserID) {
	if s.Payments == nil {
		return
	}
	if id, ok := s.takeIntent(tripID, userID); ok {
		if err := s.Payments.Capture(r.Context(), id); err != nil {
			s.logger.Warn("payment capture failed", "trip", tripID, "user", userID, "err", err)
		}
	}
}
