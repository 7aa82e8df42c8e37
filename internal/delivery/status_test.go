package delivery

import (
	"testing"

	"github.com/example/carpool/internal/models"
)

func TestTerminalStatesRejectEverything(t *testing.T) {
	terminals := []Status{
		models.DeliveryDelivered,
		models.DeliveryRejected,
		models.DeliveryCancelled,
		models.DeliveryExpired,
	}
	for _, s := range terminals {
		if CanCancel(s) {
			t.Errorf("CanCancel(%s) should be false", s)
		}
		if CanUpdateStatus(s) {
			t.Errorf("CanUpdateStatus(%s) should be false", s)
		}
		if !Terminal(s) {
			t.Errorf("Terminal(%s) should be true", s)
		}
		if len(actionTable[s]) != 0 {
			t.Errorf("terminal %s must permit no actions", s)
		}
	}
}

func TestNextStatus(t *testing.T) {
	if next, ok := NextStatus(models.DeliveryAccepted); !ok || next != models.DeliveryInTransit {
		t.Fatalf("NextStatus(Accepted) = %s, %v", next, ok)
	}
	if next, ok := NextStatus(models.DeliveryInTransit); !ok || next != models.DeliveryDelivered {
		t.Fatalf("NextStatus(InTransit) = %s, %v", next, ok)
	}
	for _, s := range []Status{
		models.DeliveryPending, models.DeliveryTripSelected, models.DeliveryDelivered,
		models.DeliveryRejected, models.DeliveryCancelled, models.DeliveryExpired,
	} {
		if _, ok := NextStatus(s); ok {
			t.Errorf("NextStatus(%s) should report no transition", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(models.DeliveryPending, models.DeliveryTripSelected) {
		t.Fatal("expected Pending -> TripSelected to be allowed")
	}
	if !CanTransition(models.DeliveryTripSelected, models.DeliveryAccepted) {
		t.Fatal("expected TripSelected -> Accepted to be allowed")
	}
	if !CanTransition(models.DeliveryTripSelected, models.DeliveryRejected) {
		t.Fatal("expected TripSelected -> Rejected to be allowed")
	}
	if CanTransition(models.DeliveryPending, models.DeliveryDelivered) {
		t.Fatal("unexpected Pending -> Delivered allowed")
	}
	if CanTransition(models.DeliveryAccepted, models.DeliveryCancelled) {
		t.Fatal("accepted requests must not be cancellable")
	}
	if CanTransition(models.DeliveryDelivered, models.DeliveryPending) {
		t.Fatal("terminal states must not be exited")
	}
}

// Walks the full happy path and checks cancel is only permitted before
// the driver accepts.
func TestHappyPathWalk(t *testing.T) {
	path := []Status{
		models.DeliveryPending,
		models.DeliveryTripSelected,
		models.DeliveryAccepted,
		models.DeliveryInTransit,
		models.DeliveryDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("step %s -> %s should be allowed", path[i], path[i+1])
		}
	}
	for _, s := range path[2:] {
		if Can(s, ActionCancel) {
			t.Errorf("cancel must be rejected locally in %s", s)
		}
	}
	if !Can(models.DeliveryPending, ActionCancel) || !Can(models.DeliveryTripSelected, ActionCancel) {
		t.Error("sender must be able to cancel before acceptance")
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("InTransit"); err != nil {
		t.Fatalf("ParseStatus(InTransit): %v", err)
	}
	if _, err := ParseStatus("Teleported"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStepActive(t *testing.T) {
	// Normal progress: every earlier step lights up.
	for _, step := range ProgressSteps[:3] {
		if !StepActive(models.DeliveryAccepted, step) {
			t.Errorf("step %s should be active at Accepted", step)
		}
	}
	if StepActive(models.DeliveryAccepted, models.DeliveryDelivered) {
		t.Error("Delivered must not be active at Accepted")
	}
	// Escape states light only themselves.
	if StepActive(models.DeliveryCancelled, models.DeliveryPending) {
		t.Error("cancelled request must not imply partial progress")
	}
	if !StepActive(models.DeliveryCancelled, models.DeliveryCancelled) {
		t.Error("cancelled step itself should be active")
	}
}
