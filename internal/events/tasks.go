// Package events доставляет события бронирований внешним рассыльщикам через очередь asynq.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/hibiken/asynq"
)

const (
	TypeBookingCreated = "booking:created"
	TypeBookingUpdated = "booking:updated"
)

const (
	// QueueNotifications очередь уведомлений о бронированиях
	QueueNotifications = "notifications"
	maxRetry           = 5
)

// TaskPayload тело задачи в очереди
type TaskPayload struct {
	BookingID string                 `json:"booking_id"`
	Type      model.BookingEventType `json:"type"`
	Payload   map[string]any         `json:"payload,omitempty"`
}

// TaskType тип задачи asynq для события
func TaskType(t model.BookingEventType) (string, error) {
	switch t {
	case model.EventBookingCreated:
		return TypeBookingCreated, nil
	case model.EventBookingUpdated:
		return TypeBookingUpdated, nil
	default:
		return "", fmt.Errorf("unknown booking event type %q", t)
	}
}

// NewBookingTask задача для события бронирования
func NewBookingTask(event model.BookingEvent) (*asynq.Task, []asynq.Option, error) {
	typ, err := TaskType(event.Type)
	if err != nil {
		return nil, nil, err
	}

	b, err := json.Marshal(TaskPayload{
		BookingID: event.BookingID,
		Type:      event.Type,
		Payload:   event.Payload,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal booking event: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueNotifications),
	}
	return asynq.NewTask(typ, b), opts, nil
}

// DecodeTask разбирает задачу обратно в событие
func DecodeTask(task *asynq.Task) (model.BookingEvent, error) {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return model.BookingEvent{}, fmt.Errorf("unmarshal booking event: %w", err)
	}
	if p.BookingID == "" {
		return model.BookingEvent{}, fmt.Errorf("booking event without booking id")
	}
	return model.BookingEvent{
		Type:      p.Type,
		BookingID: p.BookingID,
		Payload:   p.Payload,
	}, nil
}
