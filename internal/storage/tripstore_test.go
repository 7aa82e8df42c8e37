package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/carpool/internal/models"
)

func seatPtr(n int) *int { return &n }

func newTrip(seats int) *models.Trip {
	return &models.Trip{
		DriverID:       "d1",
		DriverName:     "Dora",
		Source:         "Berlin",
		Destination:    "Hamburg",
		DepartureTime:  time.Now().Add(24 * time.Hour),
		AvailableSeats: seats,
		Status:         models.TripPending,
	}
}

func TestAddParticipantDecrementsSeats(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	trip := newTrip(3)
	if err := m.CreateTrip(ctx, trip); err != nil {
		t.Fatal(err)
	}

	p := models.TripParticipant{UserID: "u1", UserName: "Una", JoinStatus: models.JoinApproved, SeatCount: seatPtr(2)}
	if err := m.AddParticipant(ctx, trip.ID, p); err != nil {
		t.Fatal(err)
	}
	got, _ := m.GetTrip(ctx, trip.ID)
	if got.AvailableSeats != 1 {
		t.Fatalf("expected 1 seat left, got %d", got.AvailableSeats)
	}

	// same user again is a conflict
	if err := m.AddParticipant(ctx, trip.ID, p); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// more seats than remain is a conflict
	p2 := models.TripParticipant{UserID: "u2", SeatCount: seatPtr(2)}
	if err := m.AddParticipant(ctx, trip.ID, p2); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRemoveParticipantRestoresSeats(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	trip := newTrip(2)
	if err := m.CreateTrip(ctx, trip); err != nil {
		t.Fatal(err)
	}
	if err := m.AddParticipant(ctx, trip.ID, models.TripParticipant{UserID: "u1", SeatCount: seatPtr(2)}); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveParticipant(ctx, trip.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	got, _ := m.GetTrip(ctx, trip.ID)
	if got.AvailableSeats != 2 || len(got.Participants) != 0 {
		t.Fatalf("expected restored trip, got seats=%d participants=%d", got.AvailableSeats, len(got.Participants))
	}
	if err := m.RemoveParticipant(ctx, trip.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTripStatusIsOptimistic(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	trip := newTrip(2)
	if err := m.CreateTrip(ctx, trip); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateTripStatus(ctx, trip.ID, models.TripPending, models.TripConfirmed, ""); err != nil {
		t.Fatal(err)
	}
	// second transition from the stale status loses
	if err := m.UpdateTripStatus(ctx, trip.ID, models.TripPending, models.TripCancelled, "too late, sorry"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// lifecycle table is enforced even before the lookup
	if err := m.UpdateTripStatus(ctx, trip.ID, models.TripConfirmed, models.TripPending, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeliveryLifecycleHistory(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	d := &models.DeliveryRequest{SenderID: "s1", SourceLocation: "A", DropoffLocation: "B", Weight: 1}
	if err := m.CreateDelivery(ctx, d); err != nil {
		t.Fatal(err)
	}
	if d.Status != models.DeliveryPending {
		t.Fatalf("expected Pending, got %s", d.Status)
	}
	if err := m.UpdateDeliveryStatus(ctx, d.ID, models.DeliveryPending, models.DeliveryTripSelected, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateDeliveryStatus(ctx, d.ID, models.DeliveryTripSelected, models.DeliveryAccepted, nil); err != nil {
		t.Fatal(err)
	}
	// skipping Accepted is rejected by the transition table
	if err := m.UpdateDeliveryStatus(ctx, d.ID, models.DeliveryAccepted, models.DeliveryDelivered, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := m.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(got.History))
	}
	if got.History[2].Status != models.DeliveryAccepted {
		t.Fatalf("unexpected last entry: %+v", got.History[2])
	}
}

func TestExpireOverdueSweepsOpenRequests(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	overdue := &models.DeliveryRequest{SenderID: "s1", WindowEnd: &past}
	fresh := &models.DeliveryRequest{SenderID: "s1", WindowEnd: &future}
	done := &models.DeliveryRequest{SenderID: "s1", WindowEnd: &past, Status: models.DeliveryDelivered}
	for _, d := range []*models.DeliveryRequest{overdue, fresh, done} {
		if err := m.CreateDelivery(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	n, err := m.ExpireOverdue(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	got, _ := m.GetDelivery(ctx, overdue.ID)
	if got.Status != models.DeliveryExpired {
		t.Fatalf("expected Expired, got %s", got.Status)
	}
	got, _ = m.GetDelivery(ctx, done.ID)
	if got.Status != models.DeliveryDelivered {
		t.Fatalf("terminal request must not be swept, got %s", got.Status)
	}
}

func TestUserStoreRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	rec := &UserRecord{User: models.User{FullName: "Ana", Email: "Ana@Example.com"}, PasswordHash: "x", ConfirmToken: "tok"}
	if err := m.CreateUser(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" {
		t.Fatal("expected assigned id")
	}
	// lookup is case-insensitive on email
	got, err := m.UserByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID {
		t.Fatalf("expected same user, got %+v", got)
	}
	if err := m.CreateUser(ctx, &UserRecord{User: models.User{Email: "ANA@example.com"}}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := m.ConfirmEmail(ctx, "tok"); err != nil {
		t.Fatal(err)
	}
	got, _ = m.UserByID(ctx, rec.ID)
	if !got.EmailConfirmed {
		t.Fatal("expected confirmed account")
	}
}
