package delivery

import "github.com/example/carpool/internal/models"

// ProgressSteps is the ordered happy path shown by progress indicators.
var ProgressSteps = []Status{
	models.DeliveryPending,
	models.DeliveryTripSelected,
	models.DeliveryAccepted,
	models.DeliveryInTransit,
	models.DeliveryDelivered,
}

func stepIndex(s Status) int {
	for i, step := range ProgressSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// StepActive reports whether a step should render as reached for the given
// current status. A request sitting in one of the escape states shows only
// that exact state; no partial progress is implied.
func StepActive(current, step Status) bool {
	switch current {
	case models.DeliveryRejected, models.DeliveryCancelled, models.DeliveryExpired:
		return step == current
	}
	ci, si := stepIndex(current), stepIndex(step)
	if ci < 0 || si < 0 {
		return false
	}
	return si <= ci
}
