package model

type BookingEventType string

const (
	EventBookingCreated BookingEventType = "BOOKING_CREATED"
	EventBookingUpdated BookingEventType = "BOOKING_UPDATED"
)

// BookingEvent событие для внешних рассылок (push, email, telegram)
type BookingEvent struct {
	Type      BookingEventType `json:"type"`
	BookingID string           `json:"booking_id"`
	Payload   map[string]any   `json:"payload,omitempty"`
}
