package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAndBook_ExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	const students = 32
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		winners     []*model.Booking
		unavailable int
		other       []error
	)
	start := make(chan struct{})
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: fmt.Sprintf("s%d", i)})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, booking)
			case errors.Is(err, model.ErrSlotUnavailable):
				unavailable++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	require.Len(t, winners, 1)
	assert.Equal(t, students-1, unavailable)
	assert.Equal(t, day.ID, winners[0].AvailabilityID)
	assert.Equal(t, "09:00", winners[0].SlotID)
	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))

	all, err := f.bookings.List(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReserveAndBook_DifferentDaysInParallel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}, "Tuesday": {"09:00"}})
	days := f.publish(t, "l1", 7)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, date := range []string{"2026-03-02", "2026-03-03"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.ledger.ReserveAndBook(ctx, id, "09:00", BookingInput{StudentID: "s1"})
		}(i, days[date].ID)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestReserveAndBook_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	_, err := f.ledger.ReserveAndBook(ctx, "missing", "09:00", BookingInput{StudentID: "s1"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.ReserveAndBook(ctx, day.ID, "11:00", BookingInput{StudentID: "s1"})
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)

	_, err = f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1", PaymentMethod: "CASH"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	// ничего из неудачных попыток не записалось
	assert.True(t, f.slotAvailable(t, day.ID, "09:00"))
	all, err := f.bookings.List(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReserveAndBook_ReceiptPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{
		StudentID:     "s1",
		StudentName:   "Student",
		PaymentMethod: model.PaymentMethodReceipt,
		ReceiptURL:    "https://files.example.com/r1.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.Equal(t, model.PaymentStatusPending, booking.PaymentStatus)
	assert.Equal(t, "l1", booking.LecturerID)
	assert.Equal(t, "Lecturer l1", booking.LecturerName)
	assert.Equal(t, 2500, booking.Price)
	assert.Equal(t, "2026-03-02", booking.Date)
	assert.Equal(t, "09:00", booking.Time)
	assert.Equal(t, sunday, booking.CreatedAt)
	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))

	pending, err := f.bookings.ListPendingPayments(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, booking.ID, pending[0].ID)

	entries, err := f.bookings.Activity(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActivityCreated, entries[0].Type)
}

func TestReschedule_MovesBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}, "Wednesday": {"14:00"}})
	days := f.publish(t, "l1", 7)
	monday, wednesday := days["2026-03-02"], days["2026-03-04"]

	booking, err := f.ledger.ReserveAndBook(ctx, monday.ID, "09:00", BookingInput{StudentID: "s1", PaymentMethod: model.PaymentMethodReceipt})
	require.NoError(t, err)

	moved, err := f.ledger.Reschedule(ctx, RescheduleInput{
		BookingID:         booking.ID,
		OldAvailabilityID: monday.ID,
		OldSlotID:         "09:00",
		NewAvailabilityID: wednesday.ID,
		NewSlotID:         "14:00",
		NewDate:           "2026-03-04",
		NewTime:           "14:00",
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusConfirmed, moved.Status)
	assert.Equal(t, "2026-03-04", moved.Date)
	assert.Equal(t, "14:00", moved.Time)
	assert.Equal(t, wednesday.ID, moved.AvailabilityID)
	assert.True(t, f.slotAvailable(t, monday.ID, "09:00"))
	assert.False(t, f.slotAvailable(t, wednesday.ID, "14:00"))

	entries, err := f.bookings.Activity(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActivityReschedule, entries[1].Type)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, "2026-03-02", entries[1].Payload["from_date"])
	assert.Equal(t, "2026-03-04", entries[1].Payload["to_date"])

	// освобождённый слот снова можно забронировать
	_, err = f.ledger.ReserveAndBook(ctx, monday.ID, "09:00", BookingInput{StudentID: "s2"})
	assert.NoError(t, err)
}

func TestReschedule_WithinSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00", "10:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1"})
	require.NoError(t, err)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID, NewAvailabilityID: day.ID, NewSlotID: "10:00"})
	require.NoError(t, err)

	assert.True(t, f.slotAvailable(t, day.ID, "09:00"))
	assert.False(t, f.slotAvailable(t, day.ID, "10:00"))
}

func TestReschedule_RejectsOtherLecturersSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	f.addLecturer(t, "l2", model.WeeklyTemplate{"Monday": {"10:00"}})
	own := f.publish(t, "l1", 7)["2026-03-02"]
	foreign := f.publish(t, "l2", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, own.ID, "09:00", BookingInput{StudentID: "s1"})
	require.NoError(t, err)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{
		BookingID:         booking.ID,
		NewAvailabilityID: foreign.ID,
		NewSlotID:         "10:00",
	})
	require.ErrorIs(t, err, model.ErrInvalidInput)

	assert.False(t, f.slotAvailable(t, own.ID, "09:00"))
	assert.True(t, f.slotAvailable(t, foreign.ID, "10:00"))

	stored, err := f.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "l1", stored.LecturerID)
	assert.Equal(t, own.ID, stored.AvailabilityID)
	assert.Equal(t, "09:00", stored.SlotID)

	entries, err := f.bookings.Activity(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReschedule_UnavailableSlotChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00", "10:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	mine, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1", PaymentMethod: model.PaymentMethodReceipt})
	require.NoError(t, err)
	_, err = f.ledger.ReserveAndBook(ctx, day.ID, "10:00", BookingInput{StudentID: "s2"})
	require.NoError(t, err)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{
		BookingID:         mine.ID,
		OldAvailabilityID: day.ID,
		OldSlotID:         "09:00",
		NewAvailabilityID: day.ID,
		NewSlotID:         "10:00",
	})
	require.ErrorIs(t, err, model.ErrSlotUnavailable)

	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))
	assert.False(t, f.slotAvailable(t, day.ID, "10:00"))

	stored, err := f.bookings.Get(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.Date, stored.Date)
	assert.Equal(t, mine.SlotID, stored.SlotID)
	assert.Equal(t, model.BookingStatusPending, stored.Status)

	entries, err := f.bookings.Activity(ctx, mine.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReschedule_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00", "10:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1"})
	require.NoError(t, err)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: "missing", NewAvailabilityID: day.ID, NewSlotID: "10:00"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID, NewAvailabilityID: "missing", NewSlotID: "10:00"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID, NewAvailabilityID: day.ID, NewSlotID: "09:00"})
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID, NewAvailabilityID: day.ID, NewSlotID: "10:00", NewDate: "2026-03-03"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.ledger.Cancel(ctx, booking.ID)
	require.NoError(t, err)
	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID, NewAvailabilityID: day.ID, NewSlotID: "10:00"})
	assert.ErrorIs(t, err, model.ErrPrecondition)
	assert.True(t, f.slotAvailable(t, day.ID, "10:00"))
}

func TestReschedule_ToleratesMissingOldReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	// бронирование без ссылки на слот
	legacy := &model.Booking{
		StudentID:     "s1",
		LecturerID:    "l1",
		Date:          "2026-02-20",
		Time:          "12:00",
		Status:        model.BookingStatusPending,
		PaymentMethod: model.PaymentMethodCard,
		PaymentStatus: model.PaymentStatusApproved,
	}
	require.NoError(t, f.store.Bookings().Create(ctx, legacy))

	moved, err := f.ledger.Reschedule(ctx, RescheduleInput{
		BookingID:         legacy.ID,
		OldAvailabilityID: "gone",
		OldSlotID:         "12:00",
		NewAvailabilityID: day.ID,
		NewSlotID:         "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, day.ID, moved.AvailabilityID)
	assert.Equal(t, model.BookingStatusConfirmed, moved.Status)
	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))
}

func TestReschedule_DoesNotReleaseSlotOfAnotherBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00", "10:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	other, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s2"})
	require.NoError(t, err)

	legacy := &model.Booking{StudentID: "s1", LecturerID: "l1", Date: "2026-02-20", Time: "12:00",
		Status: model.BookingStatusConfirmed, PaymentMethod: model.PaymentMethodCard, PaymentStatus: model.PaymentStatusApproved}
	require.NoError(t, f.store.Bookings().Create(ctx, legacy))

	_, err = f.ledger.Reschedule(ctx, RescheduleInput{
		BookingID:         legacy.ID,
		OldAvailabilityID: other.AvailabilityID,
		OldSlotID:         other.SlotID,
		NewAvailabilityID: day.ID,
		NewSlotID:         "10:00",
	})
	require.NoError(t, err)
	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))
}

func TestUpdateStatus_CancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1"})
	require.NoError(t, err)

	cancelled, err := f.ledger.Cancel(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	assert.True(t, f.slotAvailable(t, day.ID, "09:00"))

	_, err = f.ledger.UpdateStatus(ctx, booking.ID, StatusPatch{Status: statusPtr(model.BookingStatusConfirmed)})
	assert.ErrorIs(t, err, model.ErrPrecondition)

	// слот снова свободен для другого студента
	_, err = f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s2"})
	require.NoError(t, err)

	entries, err := f.bookings.Activity(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActivityStatusUpdate, entries[1].Type)
	assert.Equal(t, true, entries[1].Payload["released"])
}

func TestUpdateStatus_PaymentReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00", "10:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	approved, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1", PaymentMethod: model.PaymentMethodReceipt})
	require.NoError(t, err)
	rejected, err := f.ledger.ReserveAndBook(ctx, day.ID, "10:00", BookingInput{StudentID: "s2", PaymentMethod: model.PaymentMethodReceipt})
	require.NoError(t, err)

	got, err := f.ledger.ApprovePayment(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)
	assert.Equal(t, model.PaymentStatusApproved, got.PaymentStatus)
	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))

	got, err = f.ledger.RejectPayment(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	assert.Equal(t, model.PaymentStatusRejected, got.PaymentStatus)
	assert.True(t, f.slotAvailable(t, day.ID, "10:00"))

	pending, err := f.bookings.ListPendingPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUpdateStatus_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.UpdateStatus(ctx, "b1", StatusPatch{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	bad := model.BookingStatus("DONE")
	_, err = f.ledger.UpdateStatus(ctx, "b1", StatusPatch{Status: &bad})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.ledger.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLedger_EmitsEventsAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00", "10:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1"})
	require.NoError(t, err)
	_, err = f.ledger.Reschedule(ctx, RescheduleInput{BookingID: booking.ID, NewAvailabilityID: day.ID, NewSlotID: "10:00"})
	require.NoError(t, err)
	_, err = f.ledger.Cancel(ctx, booking.ID)
	require.NoError(t, err)

	// неудачная операция событий не порождает
	_, err = f.ledger.ReserveAndBook(ctx, day.ID, "missing", BookingInput{StudentID: "s1"})
	require.Error(t, err)

	assert.Equal(t, []model.BookingEventType{
		model.EventBookingCreated,
		model.EventBookingUpdated,
		model.EventBookingUpdated,
	}, f.events.types())
	assert.Equal(t, booking.ID, f.events.events[0].BookingID)
}

func TestLedger_EventFailureDoesNotUndoBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.events.err = errBoom
	f.addLecturer(t, "l1", model.WeeklyTemplate{"Monday": {"09:00"}})
	day := f.publish(t, "l1", 7)["2026-03-02"]

	booking, err := f.ledger.ReserveAndBook(ctx, day.ID, "09:00", BookingInput{StudentID: "s1"})
	require.NoError(t, err)

	stored, err := f.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, stored.ID)
	assert.False(t, f.slotAvailable(t, day.ID, "09:00"))
}
