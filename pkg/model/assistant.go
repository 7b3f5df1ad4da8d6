package model

const (
	ReplyAnswer  = "answer"
	ReplyBooking = "booking"
	ReplyUnclear = "unclear"

	DefaultChatUserID = "default"
	DocumentIndexed   = "indexed"
)

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
	UserID  string `json:"user_id,omitempty" validate:"max=320"`
}

// BookingProposal is the slot the assistant suggests; the client confirms it
// through POST /bookings/confirm.
type BookingProposal struct {
	Resource string `json:"resource"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration string `json:"duration"`
}

type ChatReply struct {
	Type    string           `json:"type"`
	Content string           `json:"content"`
	Source  string           `json:"source,omitempty"`
	Booking *BookingProposal `json:"booking,omitempty"`
}

type DocumentResult struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}
