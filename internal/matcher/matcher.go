package matcher

import (
	"context"
	"sort"
	"time"

	"github.com/example/carpool/internal/geo"
	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/observability"
	"github.com/example/carpool/internal/route"
	"github.com/example/carpool/internal/storage"
)

type Geo interface {
	Nearby(lat, lon float64, limit int) []geo.TripPoint
}

type Dispatcher interface {
	Offer(driverID string, offer models.DeliveryOffer) error
}

// Service ranks open trips for a pending delivery request. Candidates
// come from the spatial index; the store supplies the full trip for
// eligibility checks, and the planner prices the pickup detour.
type Service struct {
	Geo             Geo
	Dispatch        Dispatcher
	Trips           storage.TripStore
	Planner         route.Planner // optional routing engine
	RouteCache      *route.Cache  // optional route cache
	DefaultSpeedMps float64
	TopN            int
}

// Candidate is one ranked trip for a delivery.
type Candidate struct {
	Trip      *models.Trip
	DetourSec float64
	Score     float64
}

// Candidates returns eligible trips for the delivery, best first.
func (s *Service) Candidates(ctx context.Context, d *models.DeliveryRequest, origin models.Coord) []Candidate {
	if s.TopN <= 0 {
		s.TopN = 10
	}
	points := s.Geo.Nearby(origin.Lat, origin.Lon, s.TopN)
	out := make([]Candidate, 0, len(points))
	for _, p := range points {
		trip, err := s.Trips.GetTrip(ctx, p.TripID)
		if err != nil {
			continue
		}
		if !Eligible(trip, d) {
			continue
		}
		detour := s.detourSeconds(p.Loc, origin)
		score := detour + 30.0*(5.0-trip.DriverRating) // score = w1*detour + w2*(5 - rating)
		out = append(out, Candidate{Trip: trip, DetourSec: detour, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

// Match picks the best candidate, pushes an offer at its driver and
// returns it. The offer is best-effort; the sender still confirms the
// trip explicitly.
func (s *Service) Match(ctx context.Context, d *models.DeliveryRequest, origin models.Coord) (models.DeliveryOffer, bool) {
	start := time.Now()
	cands := s.Candidates(ctx, d, origin)
	if len(cands) == 0 {
		return models.DeliveryOffer{}, false
	}
	best := cands[0]
	offer := models.DeliveryOffer{
		DeliveryID: d.ID,
		TripID:     best.Trip.ID,
		DriverID:   best.Trip.DriverID,
		DetourSec:  best.DetourSec,
		Price:      d.Price,
		Score:      best.Score,
	}
	if s.Dispatch != nil {
		_ = s.Dispatch.Offer(best.Trip.DriverID.String(), offer)
	}
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	return offer, true
}

func (s *Service) detourSeconds(tripOrigin, pickup models.Coord) float64 {
	if s.RouteCache != nil {
		if r, ok := s.RouteCache.Get(tripOrigin, pickup); ok {
			return r.DurationSec
		}
	}
	if s.Planner != nil {
		if r, err := s.Planner.Directions(tripOrigin, pickup); err == nil {
			if s.RouteCache != nil {
				s.RouteCache.Set(tripOrigin, pickup, r)
			}
			return r.DurationSec
		}
	}
	// fallback to naive estimator
	return route.Estimate(tripOrigin, pickup, s.DefaultSpeedMps).DurationSec
}

// Eligible reports whether a trip can carry the delivery at all.
func Eligible(t *models.Trip, d *models.DeliveryRequest) bool {
	if t.Status != models.TripPending {
		return false
	}
	if !t.AcceptsDeliveries {
		return false
	}
	if t.MaxDeliveryWeight != nil && d.Weight > *t.MaxDeliveryWeight {
		return false
	}
	if d.WindowStart != nil && t.DepartureTime.Before(*d.WindowStart) {
		return false
	}
	if d.WindowEnd != nil && t.DepartureTime.After(*d.WindowEnd) {
		return false
	}
	return true
}
