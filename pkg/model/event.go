package model

import "time"

const (
	EventBookingProposed    = "booking.proposed"
	EventBookingApproved    = "booking.approved"
	EventBookingRejected    = "booking.rejected"
	EventAnnouncementPosted = "announcement.posted"
)

// LedgerEvent describes one committed mutation of the ledger or the announcement log.
type LedgerEvent struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	OccurredAt   time.Time     `json:"occurred_at"`
	Booking      *Booking      `json:"booking,omitempty"`
	Announcement *Announcement `json:"announcement,omitempty"`
}

// EventTypeForStatus maps a booking status to the event emitted when a booking enters it.
func EventTypeForStatus(status string) string {
	switch status {
	case StatusApproved:
		return EventBookingApproved
	case StatusRejected:
		return EventBookingRejected
	default:
		return EventBookingProposed
	}
}
