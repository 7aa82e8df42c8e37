package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/carpool/internal/booking"
	"github.com/example/carpool/internal/delivery"
	"github.com/example/carpool/internal/identity"
	"github.com/example/carpool/internal/models"
)

// MemoryStore backs both stores with in-process maps. It is the default
// when no PG_DSN is configured and the fixture store for tests.
type MemoryStore struct {
	mu         sync.RWMutex
	trips      map[int64]*models.Trip
	deliveries map[int64]*models.DeliveryRequest
	users      map[string]*UserRecord
	nextTrip   int64
	nextDel    int64
	nextUser   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:      make(map[int64]*models.Trip),
		deliveries: make(map[int64]*models.DeliveryRequest),
		users:      make(map[string]*UserRecord),
	}
}

func (m *MemoryStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTrip++
	t.ID = m.nextTrip
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	cp.Participants = append([]models.TripParticipant(nil), t.Participants...)
	return &cp, nil
}

func (m *MemoryStore) ListTrips(ctx context.Context, offset, limit int) ([]*models.Trip, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DepartureTime.Before(all[j].DepartureTime) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*models.Trip, 0, end-offset)
	for _, t := range all[offset:end] {
		cp := *t
		out = append(out, &cp)
	}
	return out, total, nil
}

func (m *MemoryStore) SearchTrips(ctx context.Context, source, destination string, day time.Time) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trip
	for _, t := range m.trips {
		if t.Status != models.TripPending {
			continue
		}
		if source != "" && !containsFold(t.Source, source) {
			continue
		}
		if destination != "" && !containsFold(t.Destination, destination) {
			continue
		}
		if !day.IsZero() && !sameDay(t.DepartureTime, day) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) TripsByDriver(ctx context.Context, driverID models.UserID) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trip
	for _, t := range m.trips {
		if identity.Same(t.DriverID, driverID) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) TripsByParticipant(ctx context.Context, userID models.UserID) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trip
	for _, t := range m.trips {
		for _, p := range t.Participants {
			if !p.IsDriver && identity.Same(p.UserID, userID) {
				cp := *t
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) UpdateTripStatus(ctx context.Context, id int64, from, to models.TripStatus, reason string) error {
	if !booking.CanTransitionTrip(from, to) {
		return ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != from {
		return ErrConflict
	}
	t.Status = to
	if reason != "" {
		t.Description = strings.TrimSpace(t.Description + "\nCancelled: " + reason)
	}
	return nil
}

func (m *MemoryStore) AddParticipant(ctx context.Context, tripID int64, p models.TripParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok {
		return ErrNotFound
	}
	seats := p.Seats()
	if t.AvailableSeats < seats {
		return ErrConflict
	}
	for _, existing := range t.Participants {
		if identity.Same(existing.UserID, p.UserID) {
			return ErrConflict
		}
	}
	t.Participants = append(t.Participants, p)
	t.AvailableSeats -= seats
	return nil
}

func (m *MemoryStore) RemoveParticipant(ctx context.Context, tripID int64, userID models.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok {
		return ErrNotFound
	}
	for i, p := range t.Participants {
		if p.IsDriver || !identity.Same(p.UserID, userID) {
			continue
		}
		t.Participants = append(t.Participants[:i], t.Participants[i+1:]...)
		t.AvailableSeats += p.Seats()
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) CreateDelivery(ctx context.Context, d *models.DeliveryRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDel++
	d.ID = m.nextDel
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = models.DeliveryPending
	}
	d.History = append(d.History, models.StatusChange{Status: d.Status, Timestamp: time.Now()})
	cp := *d
	m.deliveries[d.ID] = &cp
	return nil
}

func (m *MemoryStore) GetDelivery(ctx context.Context, id int64) (*models.DeliveryRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	cp.History = append([]models.StatusChange(nil), d.History...)
	return &cp, nil
}

func (m *MemoryStore) DeliveriesBySender(ctx context.Context, senderID models.UserID) ([]*models.DeliveryRequest, error) {
	return m.filterDeliveries(func(d *models.DeliveryRequest) bool {
		return identity.Same(d.SenderID, senderID)
	})
}

func (m *MemoryStore) DeliveriesSelectedForDriver(ctx context.Context, driverID models.UserID) ([]*models.DeliveryRequest, error) {
	return m.filterDeliveries(func(d *models.DeliveryRequest) bool {
		if d.Status != models.DeliveryTripSelected || d.TripID == nil {
			return false
		}
		t, ok := m.trips[*d.TripID]
		return ok && identity.Same(t.DriverID, driverID)
	})
}

func (m *MemoryStore) DeliveriesForDriver(ctx context.Context, driverID models.UserID) ([]*models.DeliveryRequest, error) {
	return m.filterDeliveries(func(d *models.DeliveryRequest) bool {
		if d.TripID == nil {
			return false
		}
		switch d.Status {
		case models.DeliveryAccepted, models.DeliveryInTransit, models.DeliveryDelivered:
		default:
			return false
		}
		t, ok := m.trips[*d.TripID]
		return ok && identity.Same(t.DriverID, driverID)
	})
}

func (m *MemoryStore) PendingDeliveries(ctx context.Context, tripID *int64) ([]*models.DeliveryRequest, error) {
	return m.filterDeliveries(func(d *models.DeliveryRequest) bool {
		if d.Status != models.DeliveryPending {
			return false
		}
		if tripID == nil {
			return true
		}
		for _, s := range d.MatchingTrips {
			if s.TripID == *tripID {
				return true
			}
		}
		return false
	})
}

func (m *MemoryStore) filterDeliveries(keep func(*models.DeliveryRequest) bool) ([]*models.DeliveryRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.DeliveryRequest
	for _, d := range m.deliveries {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateDeliveryStatus(ctx context.Context, id int64, from, to models.DeliveryStatus, note *string) error {
	if !delivery.CanTransition(from, to) {
		return ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	if d.Status != from {
		return ErrConflict
	}
	d.Status = to
	d.History = append(d.History, models.StatusChange{Status: to, Timestamp: time.Now(), Note: note})
	return nil
}

func (m *MemoryStore) AssignTrip(ctx context.Context, id int64, tripID int64, driverName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.TripID = &tripID
	if driverName != "" {
		d.DriverName = &driverName
	}
	return nil
}

func (m *MemoryStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.deliveries {
		if delivery.Terminal(d.Status) || d.WindowEnd == nil || !d.WindowEnd.Before(now) {
			continue
		}
		if !delivery.CanTransition(d.Status, models.DeliveryExpired) {
			continue
		}
		d.Status = models.DeliveryExpired
		d.History = append(d.History, models.StatusChange{Status: models.DeliveryExpired, Timestamp: now})
		n++
	}
	return n, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
