package booking

import (
	"testing"
	"time"

	"github.com/example/carpool/internal/models"
)

func seats(n int) *int { return &n }

func openTrip(available int) *models.Trip {
	return &models.Trip{
		ID:             1,
		DriverID:       "driver-1",
		Status:         models.TripPending,
		DepartureTime:  time.Now().Add(24 * time.Hour),
		AvailableSeats: available,
		PricePerSeat:   12,
	}
}

func TestCanBookHappyPath(t *testing.T) {
	if err := CanBook("rider-1", openTrip(3), 2, time.Now()); err != nil {
		t.Fatalf("expected bookable, got %v", err)
	}
}

func TestCanBookRejections(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		user models.UserID
		trip func() *models.Trip
		n    int
		want error
	}{
		{"unauthenticated", "", func() *models.Trip { return openTrip(3) }, 1, ErrNotAuthenticated},
		{"own trip", "driver-1", func() *models.Trip { return openTrip(3) }, 1, ErrOwnTrip},
		{"not pending", "rider-1", func() *models.Trip {
			tr := openTrip(3)
			tr.Status = models.TripConfirmed
			return tr
		}, 1, ErrTripNotOpen},
		{"departed", "rider-1", func() *models.Trip {
			tr := openTrip(3)
			tr.DepartureTime = now.Add(-time.Hour)
			return tr
		}, 1, ErrTripDeparted},
		{"no seats", "rider-1", func() *models.Trip { return openTrip(0) }, 1, ErrNoSeats},
		{"too many seats", "rider-1", func() *models.Trip { return openTrip(3) }, 4, ErrSeatCount},
		{"zero seats", "rider-1", func() *models.Trip { return openTrip(3) }, 0, ErrSeatCount},
		{"over cap", "rider-1", func() *models.Trip { return openTrip(50) }, 11, ErrSeatCount},
		{"already booked", "rider-1", func() *models.Trip {
			tr := openTrip(3)
			tr.Participants = []models.TripParticipant{{UserID: "rider-1", JoinStatus: models.JoinPending}}
			return tr
		}, 1, ErrAlreadyBooked},
	}
	for _, c := range cases {
		if err := CanBook(c.user, c.trip(), c.n, now); err != c.want {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestSeatsExhaustedAfterBooking(t *testing.T) {
	tr := openTrip(2)
	before := tr.AvailableSeats
	ApplyBooking(tr, models.BookingReply{TripID: tr.ID, UserID: "rider-1", SeatCount: 2, Status: "Confirmed"})
	if tr.AvailableSeats != before-2 {
		t.Fatalf("availableSeats = %d, want %d", tr.AvailableSeats, before-2)
	}
	// The next rider fails locally; no request goes out.
	if err := CanBook("rider-2", tr, 1, time.Now()); err != ErrNoSeats {
		t.Fatalf("second booking: got %v, want %v", err, ErrNoSeats)
	}
}

func TestApplyBookingClampsAndDedupes(t *testing.T) {
	tr := openTrip(1)
	ApplyBooking(tr, models.BookingReply{UserID: "rider-1", SeatCount: 3, Status: "Pending"})
	if tr.AvailableSeats != 0 {
		t.Fatalf("availableSeats must clamp at 0, got %d", tr.AvailableSeats)
	}
	ApplyBooking(tr, models.BookingReply{UserID: "rider-1", SeatCount: 1, Status: "Pending"})
	if len(tr.Participants) != 1 {
		t.Fatalf("duplicate reply must not add a second participant, got %d", len(tr.Participants))
	}
}

func TestJoinStatusFromReply(t *testing.T) {
	cases := map[string]models.JoinStatus{
		"Confirmed": models.JoinApproved,
		"Approved":  models.JoinApproved,
		"Rejected":  models.JoinRejected,
		"Pending":   models.JoinPending,
		"whatever":  models.JoinPending,
		"":          models.JoinPending,
	}
	for in, want := range cases {
		if got := JoinStatusFromReply(in); got != want {
			t.Errorf("JoinStatusFromReply(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBookedSeatsExcludesDriverAndPending(t *testing.T) {
	tr := openTrip(4)
	tr.Participants = []models.TripParticipant{
		{UserID: "driver-1", IsDriver: true, JoinStatus: models.JoinApproved, SeatCount: seats(1)},
		{UserID: "a", JoinStatus: models.JoinApproved, SeatCount: seats(2)},
		{UserID: "b", JoinStatus: models.JoinApproved}, // seat count absent, defaults to 1
		{UserID: "c", JoinStatus: models.JoinPending, SeatCount: seats(3)},
		{UserID: "d", JoinStatus: models.JoinRejected, SeatCount: seats(2)},
	}
	if got := BookedSeats(tr); got != 3 {
		t.Fatalf("BookedSeats = %d, want 3", got)
	}
	if got := PendingRequests(tr); got != 1 {
		t.Fatalf("PendingRequests = %d, want 1", got)
	}
}

// The driver must never inflate the booked count no matter where they sit
// in the participant list.
func TestBookedSeatsDriverPermutations(t *testing.T) {
	driver := models.TripParticipant{UserID: "driver-1", IsDriver: true, JoinStatus: models.JoinApproved, SeatCount: seats(4)}
	rider := models.TripParticipant{UserID: "a", JoinStatus: models.JoinApproved, SeatCount: seats(2)}
	unflagged := models.TripParticipant{UserID: "driver-1", JoinStatus: models.JoinApproved, SeatCount: seats(4)}

	orders := [][]models.TripParticipant{
		{driver, rider},
		{rider, driver},
		{unflagged, rider}, // driver matched by id even without the flag
		{rider, unflagged},
	}
	for i, ps := range orders {
		tr := openTrip(4)
		tr.Participants = ps
		if got := BookedSeats(tr); got != 2 {
			t.Errorf("order %d: BookedSeats = %d, want 2", i, got)
		}
	}
}

func TestDriverCancelNeedsReason(t *testing.T) {
	tr := openTrip(3)
	if err := CanCancelAsDriver("driver-1", tr, ""); err != ErrReasonTooShort {
		t.Fatalf("empty reason: got %v, want %v", err, ErrReasonTooShort)
	}
	if err := CanCancelAsDriver("driver-1", tr, "   too shrt  "); err != ErrReasonTooShort {
		t.Fatalf("short reason: got %v, want %v", err, ErrReasonTooShort)
	}
	if err := CanCancelAsDriver("driver-1", tr, "vehicle broke down on the highway"); err != nil {
		t.Fatalf("valid reason rejected: %v", err)
	}
}

func TestDriverCancelOnlyPreDeparture(t *testing.T) {
	reason := "family emergency, cannot drive today"
	for _, st := range []models.TripStatus{models.TripPending, models.TripConfirmed} {
		tr := openTrip(3)
		tr.Status = st
		if err := CanCancelAsDriver("driver-1", tr, reason); err != nil {
			t.Errorf("cancel from %s should be allowed: %v", st, err)
		}
	}
	for _, st := range []models.TripStatus{models.TripOngoing, models.TripCompleted, models.TripCancelled} {
		tr := openTrip(3)
		tr.Status = st
		if err := CanCancelAsDriver("driver-1", tr, reason); err != ErrNotCancellable {
			t.Errorf("cancel from %s: got %v, want %v", st, err, ErrNotCancellable)
		}
	}
	tr := openTrip(3)
	if err := CanCancelAsDriver("rider-1", tr, reason); err != ErrNotDriver {
		t.Errorf("non-driver cancel: got %v, want %v", err, ErrNotDriver)
	}
}

func TestPassengerCancel(t *testing.T) {
	tr := openTrip(3)
	tr.Participants = []models.TripParticipant{{UserID: "rider-1", JoinStatus: models.JoinApproved}}
	if err := CanCancelAsPassenger("rider-1", tr); err != nil {
		t.Fatalf("passenger with booking should cancel: %v", err)
	}
	if err := CanCancelAsPassenger("rider-2", tr); err != ErrNoParticipation {
		t.Fatalf("stranger cancel: got %v, want %v", err, ErrNoParticipation)
	}
	if err := CanCancelAsPassenger("driver-1", tr); err != ErrDriverSeatCancel {
		t.Fatalf("driver seat cancel: got %v, want %v", err, ErrDriverSeatCancel)
	}
}

func TestCompleteRequiresDriverAndActiveTrip(t *testing.T) {
	tr := openTrip(3)
	tr.Status = models.TripConfirmed
	if err := CanComplete("driver-1", tr); err != nil {
		t.Fatalf("driver completing confirmed trip: %v", err)
	}
	if err := CanComplete("rider-1", tr); err != ErrNotDriver {
		t.Fatalf("rider completing: got %v, want %v", err, ErrNotDriver)
	}
	tr.Status = models.TripPending
	if err := CanComplete("driver-1", tr); err != ErrNotConfirmed {
		t.Fatalf("completing pending trip: got %v, want %v", err, ErrNotConfirmed)
	}
	// Ongoing may complete too, matching the transition table.
	tr.Status = models.TripOngoing
	if err := CanComplete("driver-1", tr); err != nil {
		t.Fatalf("driver completing ongoing trip: %v", err)
	}
}

func TestTripTransitions(t *testing.T) {
	if !CanTransitionTrip(models.TripPending, models.TripConfirmed) {
		t.Fatal("expected Pending -> Confirmed to be allowed")
	}
	if !CanTransitionTrip(models.TripConfirmed, models.TripCompleted) {
		t.Fatal("expected Confirmed -> Completed to be allowed")
	}
	if CanTransitionTrip(models.TripOngoing, models.TripCancelled) {
		t.Fatal("ongoing trips must not cancel")
	}
	if CanTransitionTrip(models.TripCompleted, models.TripPending) {
		t.Fatal("completed is terminal")
	}
}
