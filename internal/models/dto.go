package models

import "time"

// Envelope is the response shape shared by every API endpoint.
// Success=false carries a domain error message regardless of HTTP status.
type Envelope[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    T        `json:"data"`
	Errors  []string `json:"errors,omitempty"`
}

type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

type CreateTripInput struct {
	Source            string    `json:"sourceLocation"`
	SourceCoord       *Coord    `json:"sourceCoord,omitempty"`
	SourceCity        string    `json:"sourceCity,omitempty"`
	Destination       string    `json:"destination"`
	DestinationCoord  *Coord    `json:"destinationCoord,omitempty"`
	DepartureTime     time.Time `json:"startTime"`
	PricePerSeat      float64   `json:"pricePerSeat"`
	AvailableSeats    int       `json:"availableSeats"`
	Description       string    `json:"tripDescription,omitempty"`
	AcceptsDeliveries bool      `json:"acceptsDeliveries"`
	MaxDeliveryWeight *float64  `json:"maxDeliveryWeight,omitempty"`
}

type BookTripInput struct {
	TripID    int64      `json:"tripId"`
	UserID    UserID     `json:"userId,omitempty"`
	SeatCount int        `json:"seatCount"`
	JoinedAt  *time.Time `json:"joinedAt,omitempty"`
}

// BookingReply is what the backend returns from a successful booking.
// Status is a free-form string ("Confirmed" means approved immediately).
type BookingReply struct {
	TripID    int64   `json:"tripId"`
	UserID    UserID  `json:"userId"`
	FullName  string  `json:"fullName"`
	SeatCount int     `json:"seatCount"`
	Status    string  `json:"status"`
	JoinedAt  *string `json:"joinedAt,omitempty"`
}

type CancelTripInput struct {
	TripID int64  `json:"tripId"`
	UserID UserID `json:"userId"`
	Reason string `json:"cancellationReason"`
}

type CreateDeliveryInput struct {
	ReceiverPhone   string    `json:"receiverPhone"`
	SourceLocation  string    `json:"sourceLocation"`
	DropoffLocation string    `json:"dropoffLocation"`
	Weight          float64   `json:"weight"`
	Price           float64   `json:"price"`
	ItemDescription string    `json:"itemDescription"`
	WindowStart     time.Time `json:"deliveryStartDate"`
	WindowEnd       time.Time `json:"deliveryEndDate"`
}

type SelectTripInput struct {
	TripID int64   `json:"tripId"`
	Note   *string `json:"notes,omitempty"`
}

type UpdateDeliveryStatusInput struct {
	Status DeliveryStatus `json:"status"`
	Note   *string        `json:"notes,omitempty"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phoneNumber,omitempty"`
	Role     string `json:"role,omitempty"`
}

// AuthReply carries the issued token plus the profile mirrored into the
// session store.
type AuthReply struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
