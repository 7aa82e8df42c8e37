package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UserID is a backend identifier. Some API surfaces emit it as a JSON
// string, others as a number; both decode into the same canonical string.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*u = UserID(n.String())
		return nil
	}
	return fmt.Errorf("user id: cannot decode %s", string(b))
}

func (u UserID) String() string { return string(u) }

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DeliveryStatus enumerates the delivery request lifecycle.
type DeliveryStatus string

const (
	DeliveryPending      DeliveryStatus = "Pending"
	DeliveryTripSelected DeliveryStatus = "TripSelected"
	DeliveryAccepted     DeliveryStatus = "Accepted"
	DeliveryRejected     DeliveryStatus = "Rejected"
	DeliveryInTransit    DeliveryStatus = "InTransit"
	DeliveryDelivered    DeliveryStatus = "Delivered"
	DeliveryCancelled    DeliveryStatus = "Cancelled"
	DeliveryExpired      DeliveryStatus = "Expired"
)

// TripStatus enumerates the trip lifecycle.
type TripStatus string

const (
	TripPending   TripStatus = "Pending"
	TripConfirmed TripStatus = "Confirmed"
	TripOngoing   TripStatus = "Ongoing"
	TripCompleted TripStatus = "Completed"
	TripCancelled TripStatus = "Cancelled"
)

// JoinStatus is a passenger's seat-request state on a trip.
type JoinStatus int

const (
	JoinPending  JoinStatus = 0
	JoinApproved JoinStatus = 1
	JoinRejected JoinStatus = 2
)

type UserRole int

const (
	RolePassenger UserRole = 0
	RoleDriver    UserRole = 1
	RoleAdmin     UserRole = 2
)

type User struct {
	ID             UserID   `json:"userId"`
	FullName       string   `json:"fullName"`
	Email          string   `json:"email"`
	Role           UserRole `json:"role"`
	Rating         float64  `json:"rating,omitempty"`
	EmailConfirmed bool     `json:"emailConfirmed"`
}

type TripParticipant struct {
	UserID      UserID     `json:"userId"`
	UserName    string     `json:"userName"`
	JoinStatus  JoinStatus `json:"joinStatus"`
	IsDriver    bool       `json:"isDriver,omitempty"`
	SeatCount   *int       `json:"seatCount,omitempty"`
	PhoneNumber *string    `json:"phoneNumber,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty"`
}

// Seats returns the participant's seat count, defaulting to 1 when the
// backend omitted the field.
func (p TripParticipant) Seats() int {
	if p.SeatCount == nil {
		return 1
	}
	return *p.SeatCount
}

type Trip struct {
	ID                int64             `json:"id"`
	DriverID          UserID            `json:"driverId"`
	DriverName        string            `json:"driverName"`
	DriverRating      float64           `json:"driverRating,omitempty"`
	Source            string            `json:"source"`
	SourceCoord       *Coord            `json:"sourceCoord,omitempty"`
	SourceCity        string            `json:"sourceCity,omitempty"`
	Destination       string            `json:"destination"`
	DestinationCoord  *Coord            `json:"destinationCoord,omitempty"`
	DepartureTime     time.Time         `json:"departureTime"`
	PricePerSeat      float64           `json:"pricePerSeat"`
	AvailableSeats    int               `json:"availableSeats"`
	Status            TripStatus        `json:"status"`
	Description       string            `json:"description,omitempty"`
	AcceptsDeliveries bool              `json:"acceptsDeliveries"`
	MaxDeliveryWeight *float64          `json:"maxDeliveryWeight,omitempty"`
	Participants      []TripParticipant `json:"participants,omitempty"`
	CreatedAt         time.Time         `json:"createdAt,omitempty"`
}

// TripSummary is the list-view projection of a trip.
type TripSummary struct {
	TripID         int64      `json:"tripId"`
	Source         string     `json:"sourceLocation"`
	Destination    string     `json:"destination"`
	DepartureTime  time.Time  `json:"startTime"`
	AvailableSeats int        `json:"availableSeats"`
	PricePerSeat   float64    `json:"pricePerSeat"`
	Status         TripStatus `json:"status"`
	DriverID       UserID     `json:"driverId"`
	DriverName     string     `json:"driverName"`
	DriverRating   float64    `json:"driverRating,omitempty"`
}

// Summary projects the list-view shape out of a full trip.
func (t *Trip) Summary() TripSummary {
	return TripSummary{
		TripID:         t.ID,
		Source:         t.Source,
		Destination:    t.Destination,
		DepartureTime:  t.DepartureTime,
		AvailableSeats: t.AvailableSeats,
		PricePerSeat:   t.PricePerSeat,
		Status:         t.Status,
		DriverID:       t.DriverID,
		DriverName:     t.DriverName,
		DriverRating:   t.DriverRating,
	}
}

type StatusChange struct {
	Status    DeliveryStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Note      *string        `json:"notes,omitempty"`
}

type DeliveryRequest struct {
	ID              int64          `json:"id"`
	SenderID        UserID         `json:"senderId"`
	SenderName      string         `json:"senderName"`
	ReceiverPhone   string         `json:"receiverPhone"`
	SourceLocation  string         `json:"sourceLocation"`
	DropoffLocation string         `json:"dropoffLocation"`
	Weight          float64        `json:"weight"`
	Price           float64        `json:"price"`
	ItemDescription string         `json:"itemDescription"`
	Status          DeliveryStatus `json:"status"`
	TripID          *int64         `json:"tripId,omitempty"`
	DriverName      *string        `json:"driverName,omitempty"`
	WindowStart     *time.Time     `json:"deliveryStartDate,omitempty"`
	WindowEnd       *time.Time     `json:"deliveryEndDate,omitempty"`
	MatchingTrips   []TripSummary  `json:"matchingTrips,omitempty"`
	History         []StatusChange `json:"statusHistory,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"createdAt,omitempty"`
}

// RoleFromString maps backend role strings onto the enum, defaulting to
// passenger for anything unrecognized.
func RoleFromString(s string) UserRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "driver":
		return RoleDriver
	case "admin":
		return RoleAdmin
	default:
		return RolePassenger
	}
}
