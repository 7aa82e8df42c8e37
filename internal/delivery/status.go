// Package delivery holds the delivery-request lifecycle state machine and
// its client-side guards. The backend stays authoritative; these checks
// reject obviously ill-formed actions before a network call or store write.
package delivery

import (
	"fmt"

	"github.com/example/carpool/internal/models"
)

type Status = models.DeliveryStatus

// Action is something a user can attempt against a delivery request.
type Action string

const (
	ActionSelectTrip   Action = "select-trip"
	ActionAccept       Action = "accept"
	ActionReject       Action = "reject"
	ActionUpdateStatus Action = "update-status"
	ActionCancel       Action = "cancel"
)

// transitions is the authoritative table. Happy path runs
// Pending -> TripSelected -> Accepted -> InTransit -> Delivered; the three
// escape states are terminal and only reachable before the driver starts
// moving the item.
var transitions = map[Status]map[Status]struct{}{
	models.DeliveryPending: {
		models.DeliveryTripSelected: {},
		models.DeliveryCancelled:    {},
		models.DeliveryExpired:      {},
	},
	models.DeliveryTripSelected: {
		models.DeliveryAccepted:  {},
		models.DeliveryRejected:  {},
		models.DeliveryCancelled: {},
		models.DeliveryExpired:   {},
	},
	models.DeliveryAccepted: {
		models.DeliveryInTransit: {},
	},
	models.DeliveryInTransit: {
		models.DeliveryDelivered: {},
	},
	models.DeliveryDelivered: {},
	models.DeliveryRejected:  {},
	models.DeliveryCancelled: {},
	models.DeliveryExpired:   {},
}

// actionTable maps each state to the actions a user may attempt in it.
var actionTable = map[Status][]Action{
	models.DeliveryPending:      {ActionSelectTrip, ActionCancel},
	models.DeliveryTripSelected: {ActionCancel, ActionAccept, ActionReject},
	models.DeliveryAccepted:     {ActionUpdateStatus},
	models.DeliveryInTransit:    {ActionUpdateStatus},
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case models.DeliveryPending, models.DeliveryTripSelected, models.DeliveryAccepted,
		models.DeliveryRejected, models.DeliveryInTransit, models.DeliveryDelivered,
		models.DeliveryCancelled, models.DeliveryExpired:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown delivery status: %q", s)
	}
}

// Terminal reports whether no further transition is permitted.
func Terminal(s Status) bool {
	switch s {
	case models.DeliveryDelivered, models.DeliveryRejected,
		models.DeliveryCancelled, models.DeliveryExpired:
		return true
	}
	return false
}

// CanTransition returns whether a request may move from one status to another.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Can reports whether the given action is well-formed in the current status.
func Can(s Status, a Action) bool {
	for _, allowed := range actionTable[s] {
		if allowed == a {
			return true
		}
	}
	return false
}

// CanCancel is true only while the sender still owns the request.
func CanCancel(s Status) bool {
	return s == models.DeliveryPending || s == models.DeliveryTripSelected
}

// CanUpdateStatus is true only for the driver-driven transit statuses.
func CanUpdateStatus(s Status) bool {
	return s == models.DeliveryAccepted || s == models.DeliveryInTransit
}

// NextStatus returns the single legal successor on the transit path.
// Anything outside Accepted/InTransit has no successor.
func NextStatus(s Status) (Status, bool) {
	switch s {
	case models.DeliveryAccepted:
		return models.DeliveryInTransit, true
	case models.DeliveryInTransit:
		return models.DeliveryDelivered, true
	default:
		return "", false
	}
}
