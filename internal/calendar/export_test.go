package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportBooking(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	booking := &model.Booking{
		ID:            "b1",
		LecturerName:  "Anna",
		Subject:       "Math",
		Date:          "2026-03-02",
		Time:          "09:00",
		Status:        model.BookingStatusConfirmed,
		PaymentMethod: model.PaymentMethodCard,
		PaymentStatus: model.PaymentStatusApproved,
	}

	body, err := ExportBooking(booking, loc, time.Hour, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	doc := string(body)
	assert.Contains(t, doc, "BEGIN:VCALENDAR")
	assert.Contains(t, doc, "UID:b1@tutoring")
	assert.Contains(t, doc, "DTSTART:20260302T060000Z")
	assert.Contains(t, doc, "DTEND:20260302T070000Z")
	assert.Contains(t, doc, "SUMMARY:Math with Anna")

	// экспорт читается нашим же парсером
	intervals, err := ParseICS(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), intervals[0].Start)
	assert.Equal(t, time.Hour, intervals[0].End.Sub(intervals[0].Start))
}

func TestExportBooking_BadDate(t *testing.T) {
	_, err := ExportBooking(&model.Booking{ID: "b1", Date: "02.03.2026", Time: "09:00"}, time.UTC, time.Hour, time.Now())
	assert.Error(t, err)
}
