package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"go.uber.org/zap"
)

// BookingService чтение бронирований и их журнала. Изменения идут через Ledger.
type BookingService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewBookingService(store repository.Store, logger *zap.Logger) *BookingService {
	return &BookingService{
		store:  store,
		logger: logger,
	}
}

// Get возвращает бронирование или model.ErrNotFound
func (s *BookingService) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
	}
	return booking, nil
}

// List бронирования по фильтру в хронологическом порядке занятий
func (s *BookingService) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	bookings, err := s.store.Bookings().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListPendingPayments бронирования с чеком, ожидающие проверки
func (s *BookingService) ListPendingPayments(ctx context.Context) ([]*model.Booking, error) {
	return s.List(ctx, model.BookingFilter{
		PaymentMethod: model.PaymentMethodReceipt,
		PaymentStatus: model.PaymentStatusPending,
	})
}

// Activity журнал бронирования в порядке добавления
func (s *BookingService) Activity(ctx context.Context, bookingID string) ([]*model.ActivityLogEntry, error) {
	if _, err := s.Get(ctx, bookingID); err != nil {
		return nil, err
	}

	entries, err := s.store.Activity().ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}
