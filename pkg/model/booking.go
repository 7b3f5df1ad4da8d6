package model

import (
	"time"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	// Filter-only values accepted by ListBookings.
	StatusHistory = "history"
	StatusAll     = "all"
)

type Booking struct {
	ID        string    `json:"id" bson:"_id"`
	Requester string    `json:"requester" bson:"requester"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Resource  string    `json:"resource" bson:"resource"`
	Date      string    `json:"date" bson:"date"`
	Time      string    `json:"time" bson:"time"`
	Duration  string    `json:"duration" bson:"duration"`
	Status    string    `json:"status" bson:"status"`
	Remarks   string    `json:"remarks,omitempty" bson:"remarks,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Sequence  int64     `json:"-" bson:"sequence"`

	// Interval in minutes since midnight, derived from Time and Duration.
	StartMinute int `json:"-" bson:"start_minute"`
	EndMinute   int `json:"-" bson:"end_minute"`
}

// Clone returns a copy that shares no state with b.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}

// Overlaps reports whether the half-open intervals of b and other intersect.
func (b *Booking) Overlaps(other *Booking) bool {
	return b.StartMinute < other.EndMinute && other.StartMinute < b.EndMinute
}

type ProposeRequest struct {
	Requester string `json:"requester" validate:"required,max=200"`
	UserID    string `json:"user_id" validate:"required,max=320"`
	Resource  string `json:"resource" validate:"required,max=200"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,slot_time"`
	Duration  string `json:"duration" validate:"required,slot_duration"`
}

type StatusUpdate struct {
	Status  string `json:"status" validate:"required,oneof=approved rejected"`
	Remarks string `json:"remarks,omitempty" validate:"max=1000"`
}

type BookingFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// BookingResponse adds the booking_id alias the chat front-end reads after confirmation.
type BookingResponse struct {
	*Booking
	BookingID string `json:"booking_id"`
}

func NewBookingResponse(b *Booking) *BookingResponse {
	return &BookingResponse{Booking: b, BookingID: b.ID}
}

// Unavailable is the body returned when a proposal collides with an existing booking.
type Unavailable struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
