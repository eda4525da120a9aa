package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"go.uber.org/zap"
)

// BookingInput данные студента для бронирования слота
type BookingInput struct {
	StudentID     string
	StudentName   string
	PaymentMethod model.PaymentMethod
	ReceiptURL    string
}

// RescheduleInput перенос бронирования на другой слот.
// Старая ссылка нужна только для бронирований, которые сами её не хранят.
type RescheduleInput struct {
	BookingID         string
	OldAvailabilityID string
	OldSlotID         string
	NewAvailabilityID string
	NewSlotID         string
	NewDate           string
	NewTime           string
}

// StatusPatch изменение статусов бронирования; nil поля не меняются
type StatusPatch struct {
	Status        *model.BookingStatus
	PaymentStatus *model.PaymentStatus
}

// Ledger единственный код, который меняет флаг available у слотов.
// Захват слота и запись бронирования всегда идут одной транзакцией.
type Ledger struct {
	store  repository.Store
	events EventPublisher
	now    Clock
	logger *zap.Logger
}

func NewLedger(store repository.Store, events EventPublisher, now Clock, logger *zap.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:  store,
		events: events,
		now:    now,
		logger: logger,
	}
}

// ReserveAndBook занимает слот и создаёт бронирование атомарно.
// Из параллельных попыток на один слот успешна ровно одна, остальные
// получают model.ErrSlotUnavailable.
func (l *Ledger) ReserveAndBook(ctx context.Context, availabilityID, slotID string, in BookingInput) (*model.Booking, error) {
	if in.StudentID == "" {
		return nil, fmt.Errorf("student id is required: %w", model.ErrInvalidInput)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentMethodCard
	}
	if !validPaymentMethod(in.PaymentMethod) {
		return nil, fmt.Errorf("payment method %q: %w", in.PaymentMethod, model.ErrInvalidInput)
	}

	// Карта считается уже оплаченной, чек ждёт проверки администратором
	status, paymentStatus := model.BookingStatusConfirmed, model.PaymentStatusApproved
	if in.PaymentMethod == model.PaymentMethodReceipt {
		status, paymentStatus = model.BookingStatusPending, model.PaymentStatusPending
	}

	var booking *model.Booking
	err := l.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		day, err := repos.Availability().GetByIDForUpdate(ctx, availabilityID)
		if err != nil {
			return fmt.Errorf("get availability: %w", err)
		}
		if day == nil {
			return fmt.Errorf("availability %s: %w", availabilityID, model.ErrNotFound)
		}

		idx, slot := day.Slot(slotID)
		if slot == nil || !slot.Available {
			return fmt.Errorf("slot %s on %s: %w", slotID, day.Date, model.ErrSlotUnavailable)
		}

		slots := append([]model.TimeSlot(nil), day.TimeSlots...)
		slots[idx].Available = false
		if err := repos.Availability().UpdateSlots(ctx, day.ID, slots); err != nil {
			return fmt.Errorf("claim slot: %w", err)
		}

		lecturer, err := repos.Lecturers().GetByID(ctx, day.LecturerID)
		if err != nil {
			return fmt.Errorf("get lecturer: %w", err)
		}

		booking = &model.Booking{
			StudentID:      in.StudentID,
			StudentName:    in.StudentName,
			LecturerID:     day.LecturerID,
			Date:           day.Date,
			Time:           slot.Time,
			AvailabilityID: day.ID,
			SlotID:         slot.ID,
			Status:         status,
			PaymentMethod:  in.PaymentMethod,
			PaymentStatus:  paymentStatus,
			ReceiptURL:     in.ReceiptURL,
		}
		if lecturer != nil {
			booking.LecturerName = lecturer.Name
			booking.Subject = lecturer.Subject
			booking.Price = lecturer.Price
		}

		if err := repos.Bookings().Create(ctx, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		return l.appendActivity(ctx, repos, booking.ID, model.ActivityCreated, map[string]any{
			"status":          string(booking.Status),
			"payment_method":  string(booking.PaymentMethod),
			"payment_status":  string(booking.PaymentStatus),
			"availability_id": booking.AvailabilityID,
			"slot_id":         booking.SlotID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reserve and book: %w", err)
	}

	l.logger.Info("Slot booked",
		zap.String("booking_id", booking.ID),
		zap.String("student_id", booking.StudentID),
		zap.String("availability_id", availabilityID),
		zap.String("slot_id", slotID),
		zap.String("status", string(booking.Status)),
	)

	l.emit(ctx, model.EventBookingCreated, booking, nil)

	return booking, nil
}

// Reschedule освобождает старый слот и занимает новый одной транзакцией.
// Если новый слот недоступен, ничего не меняется.
func (l *Ledger) Reschedule(ctx context.Context, in RescheduleInput) (*model.Booking, error) {
	if in.BookingID == "" || in.NewAvailabilityID == "" || in.NewSlotID == "" {
		return nil, fmt.Errorf("booking id and new slot are required: %w", model.ErrInvalidInput)
	}

	var (
		booking *model.Booking
		payload map[string]any
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, err = repos.Bookings().GetByIDForUpdate(ctx, in.BookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return fmt.Errorf("booking %s: %w", in.BookingID, model.ErrNotFound)
		}
		if !booking.IsLive() {
			return fmt.Errorf("booking %s is cancelled: %w", booking.ID, model.ErrPrecondition)
		}

		oldRef, hasOld, err := l.releasableRef(ctx, repos, booking, in)
		if err != nil {
			return err
		}
		newRef := model.SlotRef{AvailabilityID: in.NewAvailabilityID, SlotID: in.NewSlotID}
		if hasOld && oldRef == newRef {
			return fmt.Errorf("booking %s already holds slot %s: %w", booking.ID, newRef.SlotID, model.ErrSlotUnavailable)
		}

		// Дни блокируются в порядке ID, чтобы встречные переносы не ловили дедлок
		ids := []string{newRef.AvailabilityID}
		if hasOld && oldRef.AvailabilityID != newRef.AvailabilityID {
			ids = append(ids, oldRef.AvailabilityID)
		}
		sort.Strings(ids)

		days := make(map[string]*model.AvailabilityDay, len(ids))
		for _, id := range ids {
			day, err := repos.Availability().GetByIDForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("get availability: %w", err)
			}
			if day != nil {
				days[id] = day
			}
		}

		newDay := days[newRef.AvailabilityID]
		if newDay == nil {
			return fmt.Errorf("availability %s: %w", newRef.AvailabilityID, model.ErrNotFound)
		}
		// перенос только в пределах расписания того же преподавателя
		if newDay.LecturerID != booking.LecturerID {
			return fmt.Errorf("availability %s belongs to lecturer %s, booking to %s: %w",
				newDay.ID, newDay.LecturerID, booking.LecturerID, model.ErrInvalidInput)
		}
		newIdx, newSlot := newDay.Slot(newRef.SlotID)
		if newSlot == nil || !newSlot.Available {
			return fmt.Errorf("slot %s on %s: %w", newRef.SlotID, newDay.Date, model.ErrSlotUnavailable)
		}
		if in.NewDate != "" && in.NewDate != newDay.Date {
			return fmt.Errorf("new date %s does not match availability date %s: %w", in.NewDate, newDay.Date, model.ErrInvalidInput)
		}
		if in.NewTime != "" && in.NewTime != newSlot.Time {
			return fmt.Errorf("new time %s does not match slot time %s: %w", in.NewTime, newSlot.Time, model.ErrInvalidInput)
		}

		newSlots := append([]model.TimeSlot(nil), newDay.TimeSlots...)
		newSlots[newIdx].Available = false

		released := false
		if hasOld {
			if oldDay := days[oldRef.AvailabilityID]; oldDay != nil {
				if oldDay.ID == newDay.ID {
					if i, _ := newDay.Slot(oldRef.SlotID); i >= 0 {
						newSlots[i].Available = true
						released = true
					}
				} else if i, _ := oldDay.Slot(oldRef.SlotID); i >= 0 {
					oldSlots := append([]model.TimeSlot(nil), oldDay.TimeSlots...)
					oldSlots[i].Available = true
					if err := repos.Availability().UpdateSlots(ctx, oldDay.ID, oldSlots); err != nil {
						return fmt.Errorf("release slot: %w", err)
					}
					released = true
				}
			}
		}

		if err := repos.Availability().UpdateSlots(ctx, newDay.ID, newSlots); err != nil {
			return fmt.Errorf("claim slot: %w", err)
		}

		payload = map[string]any{
			"from_date":            booking.Date,
			"from_time":            booking.Time,
			"from_availability_id": oldRef.AvailabilityID,
			"from_slot_id":         oldRef.SlotID,
			"to_date":              newDay.Date,
			"to_time":              newSlot.Time,
			"to_availability_id":   newDay.ID,
			"to_slot_id":           newSlot.ID,
			"released":             released,
		}

		booking.Date = newDay.Date
		booking.Time = newSlot.Time
		booking.AvailabilityID = newDay.ID
		booking.SlotID = newSlot.ID
		booking.Status = model.BookingStatusConfirmed

		if err := repos.Bookings().Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		return l.appendActivity(ctx, repos, booking.ID, model.ActivityReschedule, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("reschedule booking: %w", err)
	}

	l.logger.Info("Booking rescheduled",
		zap.String("booking_id", booking.ID),
		zap.String("date", booking.Date),
		zap.String("time", booking.Time),
	)

	l.emit(ctx, model.EventBookingUpdated, booking, map[string]any{"reason": string(model.ActivityReschedule)})

	return booking, nil
}

// releasableRef слот, который перенос должен освободить. Ссылка из запроса
// используется только если бронирование своей не хранит и слот не занят другим.
func (l *Ledger) releasableRef(ctx context.Context, repos repository.Repositories, booking *model.Booking, in RescheduleInput) (model.SlotRef, bool, error) {
	if ref, ok := booking.SlotRef(); ok {
		return ref, true, nil
	}
	if in.OldAvailabilityID == "" || in.OldSlotID == "" {
		return model.SlotRef{}, false, nil
	}

	ref := model.SlotRef{AvailabilityID: in.OldAvailabilityID, SlotID: in.OldSlotID}
	live, err := repos.Bookings().ListLiveByAvailability(ctx, []string{ref.AvailabilityID})
	if err != nil {
		return model.SlotRef{}, false, fmt.Errorf("list live bookings: %w", err)
	}
	for _, b := range live {
		if held, ok := b.SlotRef(); ok && held == ref && b.ID != booking.ID {
			l.logger.Warn("Old slot is held by another booking, not releasing",
				zap.String("booking_id", booking.ID),
				zap.String("holder_id", b.ID),
			)
			return model.SlotRef{}, false, nil
		}
	}

	return ref, true, nil
}

// UpdateStatus меняет статусы бронирования вместе с записью в журнале.
// Переход в CANCELLED освобождает слот в той же транзакции;
// отменённое бронирование вернуть нельзя.
func (l *Ledger) UpdateStatus(ctx context.Context, bookingID string, patch StatusPatch) (*model.Booking, error) {
	if patch.Status == nil && patch.PaymentStatus == nil {
		return nil, fmt.Errorf("empty status patch: %w", model.ErrInvalidInput)
	}
	if patch.Status != nil && !validBookingStatus(*patch.Status) {
		return nil, fmt.Errorf("status %q: %w", *patch.Status, model.ErrInvalidInput)
	}
	if patch.PaymentStatus != nil && !validPaymentStatus(*patch.PaymentStatus) {
		return nil, fmt.Errorf("payment status %q: %w", *patch.PaymentStatus, model.ErrInvalidInput)
	}

	var booking *model.Booking
	err := l.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, err = repos.Bookings().GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return fmt.Errorf("booking %s: %w", bookingID, model.ErrNotFound)
		}

		wasLive := booking.IsLive()
		if !wasLive && patch.Status != nil && *patch.Status != model.BookingStatusCancelled {
			return fmt.Errorf("booking %s is cancelled: %w", booking.ID, model.ErrPrecondition)
		}

		from := map[string]any{
			"status":         string(booking.Status),
			"payment_status": string(booking.PaymentStatus),
		}
		if patch.Status != nil {
			booking.Status = *patch.Status
		}
		if patch.PaymentStatus != nil {
			booking.PaymentStatus = *patch.PaymentStatus
		}

		released := false
		if wasLive && !booking.IsLive() {
			released, err = releaseSlot(ctx, repos, booking)
			if err != nil {
				return err
			}
		}

		if err := repos.Bookings().Update(ctx, booking); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		return l.appendActivity(ctx, repos, booking.ID, model.ActivityStatusUpdate, map[string]any{
			"from": from,
			"to": map[string]any{
				"status":         string(booking.Status),
				"payment_status": string(booking.PaymentStatus),
			},
			"released": released,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	l.logger.Info("Booking status updated",
		zap.String("booking_id", booking.ID),
		zap.String("status", string(booking.Status)),
		zap.String("payment_status", string(booking.PaymentStatus)),
	)

	l.emit(ctx, model.EventBookingUpdated, booking, map[string]any{"reason": string(model.ActivityStatusUpdate)})

	return booking, nil
}

// ApprovePayment подтверждает оплату по чеку
func (l *Ledger) ApprovePayment(ctx context.Context, bookingID string) (*model.Booking, error) {
	return l.UpdateStatus(ctx, bookingID, StatusPatch{
		Status:        statusPtr(model.BookingStatusConfirmed),
		PaymentStatus: paymentStatusPtr(model.PaymentStatusApproved),
	})
}

// RejectPayment отклоняет оплату и отменяет бронирование
func (l *Ledger) RejectPayment(ctx context.Context, bookingID string) (*model.Booking, error) {
	return l.UpdateStatus(ctx, bookingID, StatusPatch{
		Status:        statusPtr(model.BookingStatusCancelled),
		PaymentStatus: paymentStatusPtr(model.PaymentStatusRejected),
	})
}

func (l *Ledger) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	return l.UpdateStatus(ctx, bookingID, StatusPatch{
		Status: statusPtr(model.BookingStatusCancelled),
	})
}

// releaseSlot возвращает слот отменённого бронирования в доступные.
// Отсутствующий день или слот не ошибка.
func releaseSlot(ctx context.Context, repos repository.Repositories, booking *model.Booking) (bool, error) {
	ref, ok := booking.SlotRef()
	if !ok {
		return false, nil
	}

	day, err := repos.Availability().GetByIDForUpdate(ctx, ref.AvailabilityID)
	if err != nil {
		return false, fmt.Errorf("get availability: %w", err)
	}
	if day == nil {
		return false, nil
	}
	idx, _ := day.Slot(ref.SlotID)
	if idx < 0 {
		return false, nil
	}

	slots := append([]model.TimeSlot(nil), day.TimeSlots...)
	slots[idx].Available = true
	if err := repos.Availability().UpdateSlots(ctx, day.ID, slots); err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return true, nil
}

func (l *Ledger) appendActivity(ctx context.Context, repos repository.Repositories, bookingID string, typ model.ActivityType, payload map[string]any) error {
	entry := &model.ActivityLogEntry{
		BookingID: bookingID,
		Type:      typ,
		At:        l.now().UTC(),
		Payload:   payload,
	}
	if err := repos.Activity().Append(ctx, entry); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// emit отправка события после коммита; ошибка только логируется
func (l *Ledger) emit(ctx context.Context, typ model.BookingEventType, booking *model.Booking, extra map[string]any) {
	if l.events == nil {
		return
	}

	payload := map[string]any{
		"student_id":     booking.StudentID,
		"lecturer_id":    booking.LecturerID,
		"date":           booking.Date,
		"time":           booking.Time,
		"status":         string(booking.Status),
		"payment_status": string(booking.PaymentStatus),
	}
	for k, v := range extra {
		payload[k] = v
	}

	err := l.events.Publish(ctx, model.BookingEvent{
		Type:      typ,
		BookingID: booking.ID,
		Payload:   payload,
	})
	if err != nil {
		l.logger.Warn("Failed to emit booking event",
			zap.String("booking_id", booking.ID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

func validPaymentMethod(m model.PaymentMethod) bool {
	return m == model.PaymentMethodCard || m == model.PaymentMethodReceipt
}

func validBookingStatus(s model.BookingStatus) bool {
	switch s {
	case model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusCancelled:
		return true
	}
	return false
}

func validPaymentStatus(s model.PaymentStatus) bool {
	switch s {
	case model.PaymentStatusPending, model.PaymentStatusApproved, model.PaymentStatusRejected:
		return true
	}
	return false
}

func statusPtr(s model.BookingStatus) *model.BookingStatus {
	return &s
}

func paymentStatusPtr(s model.PaymentStatus) *model.PaymentStatus {
	return &s
}
