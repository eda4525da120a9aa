package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

const productID = "-//tutor_marketplace//bookings//EN"

// ExportBooking ICS-файл с одним занятием для календаря студента или преподавателя
func ExportBooking(booking *model.Booking, loc *time.Location, classDuration time.Duration, now time.Time) ([]byte, error) {
	start, err := model.SlotStart(booking.Date, booking.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("export booking %s: %w", booking.ID, err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	event := cal.AddEvent(booking.ID + "@tutoring")
	event.SetDtStampTime(now.UTC())
	event.SetStartAt(start.UTC())
	event.SetEndAt(start.Add(classDuration).UTC())
	event.SetSummary(bookingSummary(booking))
	event.SetDescription(fmt.Sprintf("Status: %s, payment: %s (%s)", booking.Status, booking.PaymentStatus, booking.PaymentMethod))
	if booking.Status == model.BookingStatusCancelled {
		event.SetStatus(ics.ObjectStatusCancelled)
	} else {
		event.SetStatus(ics.ObjectStatusConfirmed)
	}

	return []byte(cal.Serialize()), nil
}

func bookingSummary(b *model.Booking) string {
	switch {
	case b.Subject != "" && b.LecturerName != "":
		return fmt.Sprintf("%s with %s", b.Subject, b.LecturerName)
	case b.Subject != "":
		return b.Subject
	default:
		return "Class"
	}
}
