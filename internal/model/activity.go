package model

import "time"

type ActivityType string

const (
	ActivityCreated      ActivityType = "CREATED"
	ActivityStatusUpdate ActivityType = "STATUS_UPDATE"
	ActivityReschedule   ActivityType = "RESCHEDULE"
)

// ActivityLogEntry запись журнала бронирования, только добавление
type ActivityLogEntry struct {
	ID        string         `json:"id"`
	BookingID string         `json:"booking_id"`
	Seq       int64          `json:"seq"`
	Type      ActivityType   `json:"type"`
	At        time.Time      `json:"at"`
	Payload   map[string]any `json:"payload,omitempty"`
}
