package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/carpool/internal/delivery"
	"github.com/example/carpool/internal/models"
)

// Delivery endpoints. Terminal-state and wrong-state actions are rejected
// locally before any request is issued; the backend re-validates everything.

func (c *Client) CreateDelivery(ctx context.Context, in models.CreateDeliveryInput) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	if in.Weight <= 0 {
		return models.DeliveryRequest{}, validationMsg("Weight must be greater than zero.")
	}
	if !in.WindowEnd.After(in.WindowStart) {
		return models.DeliveryRequest{}, validationMsg("The delivery window end must be after its start.")
	}
	return do[models.DeliveryRequest](ctx, c, http.MethodPost, "/Delivery", nil, in, s.Token)
}

func (c *Client) Delivery(ctx context.Context, id int64) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	return get[models.DeliveryRequest](ctx, c, fmt.Sprintf("/Delivery/%d", id), nil, s.Token)
}

func (c *Client) MatchingTrips(ctx context.Context, requestID int64) ([]models.TripSummary, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return get[[]models.TripSummary](ctx, c, fmt.Sprintf("/Delivery/matching-trips/%d", requestID), nil, s.Token)
}

// PendingDeliveries lists requests a driver could take, optionally scoped
// to one of their trips.
func (c *Client) PendingDeliveries(ctx context.Context, tripID *int64) ([]models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if tripID != nil {
		q.Set("tripId", strconv.FormatInt(*tripID, 10))
	}
	return get[[]models.DeliveryRequest](ctx, c, "/Delivery/pending", q, s.Token)
}

// SelectedForMe lists requests whose senders picked one of the caller's
// trips. This read is retried once on transport failure; it backs the
// driver's main work queue.
func (c *Client) SelectedForMe(ctx context.Context) ([]models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return getRetryOnce[[]models.DeliveryRequest](ctx, c, "/Delivery/selected-for-me", nil, s.Token)
}

func (c *Client) MyRequests(ctx context.Context) ([]models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return get[[]models.DeliveryRequest](ctx, c, "/Delivery/my-requests", nil, s.Token)
}

func (c *Client) MyDeliveries(ctx context.Context) ([]models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return get[[]models.DeliveryRequest](ctx, c, "/Delivery/my-deliveries", nil, s.Token)
}

// SelectTripForDelivery moves a pending request to TripSelected.
func (c *Client) SelectTripForDelivery(ctx context.Context, req *models.DeliveryRequest, in models.SelectTripInput) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	if !delivery.Can(req.Status, delivery.ActionSelectTrip) {
		return models.DeliveryRequest{}, validationMsg("A trip can only be selected while the request is pending.")
	}
	if err := c.begin(deliveryKey(req.ID)); err != nil {
		return models.DeliveryRequest{}, err
	}
	defer c.end(deliveryKey(req.ID))
	return do[models.DeliveryRequest](ctx, c, http.MethodPost, fmt.Sprintf("/Delivery/%d/select-trip", req.ID), nil, in, s.Token)
}

// AcceptDelivery is the driver accepting a request selected for their trip.
func (c *Client) AcceptDelivery(ctx context.Context, req *models.DeliveryRequest, tripID int64) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	if !delivery.Can(req.Status, delivery.ActionAccept) {
		return models.DeliveryRequest{}, validationMsg("This request can no longer be accepted.")
	}
	if err := c.begin(deliveryKey(req.ID)); err != nil {
		return models.DeliveryRequest{}, err
	}
	defer c.end(deliveryKey(req.ID))
	q := url.Values{"tripId": []string{strconv.FormatInt(tripID, 10)}}
	return do[models.DeliveryRequest](ctx, c, http.MethodPost, fmt.Sprintf("/Delivery/%d/accept", req.ID), q, nil, s.Token)
}

func (c *Client) RejectDelivery(ctx context.Context, req *models.DeliveryRequest) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	if !delivery.Can(req.Status, delivery.ActionReject) {
		return models.DeliveryRequest{}, validationMsg("This request can no longer be rejected.")
	}
	if err := c.begin(deliveryKey(req.ID)); err != nil {
		return models.DeliveryRequest{}, err
	}
	defer c.end(deliveryKey(req.ID))
	return do[models.DeliveryRequest](ctx, c, http.MethodPost, fmt.Sprintf("/Delivery/%d/reject", req.ID), nil, nil, s.Token)
}

// AdvanceDeliveryStatus submits the single legal successor status
// (Accepted -> InTransit -> Delivered).
func (c *Client) AdvanceDeliveryStatus(ctx context.Context, req *models.DeliveryRequest, note *string) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	next, ok := delivery.NextStatus(req.Status)
	if !ok {
		return models.DeliveryRequest{}, validationMsg("This delivery's status cannot be updated further.")
	}
	if err := c.begin(deliveryKey(req.ID)); err != nil {
		return models.DeliveryRequest{}, err
	}
	defer c.end(deliveryKey(req.ID))
	in := models.UpdateDeliveryStatusInput{Status: next, Note: note}
	return do[models.DeliveryRequest](ctx, c, http.MethodPut, fmt.Sprintf("/Delivery/%d/status", req.ID), nil, in, s.Token)
}

// CancelDelivery cancels the sender's own request. Rejected locally once
// a driver has accepted it.
func (c *Client) CancelDelivery(ctx context.Context, req *models.DeliveryRequest) (models.DeliveryRequest, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return models.DeliveryRequest{}, err
	}
	if !delivery.CanCancel(req.Status) {
		return models.DeliveryRequest{}, validationMsg("This request can no longer be cancelled.")
	}
	if err := c.begin(deliveryKey(req.ID)); err != nil {
		return models.DeliveryRequest{}, err
	}
	defer c.end(deliveryKey(req.ID))
	return do[models.DeliveryRequest](ctx, c, http.MethodPost, fmt.Sprintf("/Delivery/%d/cancel", req.ID), nil, nil, s.Token)
}

// CheckExpiredDeliveries sweeps overdue pending requests (admin only);
// returns how many were expired.
func (c *Client) CheckExpiredDeliveries(ctx context.Context) (int, error) {
	s, err := c.currentUser(ctx)
	if err != nil {
		return 0, err
	}
	return do[int](ctx, c, http.MethodPost, "/Delivery/check-expired", nil, nil, s.Token)
}
