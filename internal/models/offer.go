package models

// DeliveryOffer is what the matcher pushes at a driver: a pending
// delivery request scored against one of the driver's open trips.
type DeliveryOffer struct {
	DeliveryID int64   `json:"deliveryId"`
	TripID     int64   `json:"tripId"`
	DriverID   UserID  `json:"driverId"`
	DetourSec  float64 `json:"detourSec"`
	Price      float64 `json:"price"`
	Score      float64 `json:"score"`
}
