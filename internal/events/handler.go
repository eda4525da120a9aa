package events

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Notifier доставляет событие бронирования адресату
type Notifier interface {
	NotifyBooking(ctx context.Context, event model.BookingEvent, booking *model.Booking, lecturer *model.Lecturer) error
}

// Handler обработчик задач бронирований в воркере
type Handler struct {
	repos    repository.Repositories
	notifier Notifier
	logger   *zap.Logger
}

func NewHandler(repos repository.Repositories, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{
		repos:    repos,
		notifier: notifier,
		logger:   logger,
	}
}

// NewServeMux регистрирует обработчики всех типов событий
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingCreated, h.ProcessTask)
	mux.HandleFunc(TypeBookingUpdated, h.ProcessTask)
	return mux
}

// ProcessTask битая задача или удалённое бронирование не повторяются,
// ошибка отправки уведомления возвращается и asynq повторит задачу
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	event, err := DecodeTask(task)
	if err != nil {
		h.logger.Error("Invalid booking task", zap.String("type", task.Type()), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	booking, err := h.repos.Bookings().GetByID(ctx, event.BookingID)
	if err != nil {
		return fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		h.logger.Warn("Booking for event not found, dropping",
			zap.String("booking_id", event.BookingID),
			zap.String("type", string(event.Type)),
		)
		return nil
	}

	lecturer, err := h.repos.Lecturers().GetByID(ctx, booking.LecturerID)
	if err != nil {
		return fmt.Errorf("get lecturer: %w", err)
	}

	if err := h.notifier.NotifyBooking(ctx, event, booking, lecturer); err != nil {
		return fmt.Errorf("notify booking %s: %w", booking.ID, err)
	}

	h.logger.Info("Booking event delivered",
		zap.String("booking_id", booking.ID),
		zap.String("type", string(event.Type)),
	)
	return nil
}
