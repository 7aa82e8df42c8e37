package dispatch

import (
	"github.com/example/carpool/internal/models"
)

// PushDispatcher prefers a live websocket session and falls back to the
// FCM channel for drivers who are not currently connected.
type PushDispatcher struct {
	WS  *WSRegistry
	FCM *FCMDispatcher
}

func NewPushDispatcher(ws *WSRegistry, fcm *FCMDispatcher) *PushDispatcher {
	return &PushDispatcher{WS: ws, FCM: fcm}
}

func (p *PushDispatcher) Offer(driverID string, offer models.DeliveryOffer) error {
	if p.WS != nil {
		if err := p.WS.Offer(driverID, offer); err == nil {
			return nil
		}
	}
	if p.FCM != nil {
		return p.FCM.Offer(driverID, offer)
	}
	return ErrNoSession
}
