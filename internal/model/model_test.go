package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusyInterval_Overlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	busy := BusyInterval{Start: at(9, 0), End: at(10, 0)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"ends exactly at busy start", at(8, 0), at(9, 0), false},
		{"starts exactly at busy end", at(10, 0), at(11, 0), false},
		{"one minute into busy", at(8, 1), at(9, 1), true},
		{"inside", at(9, 15), at(9, 45), true},
		{"covers", at(8, 0), at(11, 0), true},
		{"same range", at(9, 0), at(10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, busy.Overlaps(tt.start, tt.end))
		})
	}
}

func TestSlotStart(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	start, err := SlotStart("2026-03-02", "09:00", moscow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), start.UTC())

	_, err = SlotStart("2026-03-02", "25:00", time.UTC)
	assert.Error(t, err)
}

func TestWeeklyTemplate(t *testing.T) {
	tpl := WeeklyTemplate{"Monday": {"09:00", "11:00"}, "Friday": {}}

	assert.Equal(t, []string{"09:00", "11:00"}, tpl.TimesFor(time.Monday))
	assert.Empty(t, tpl.TimesFor(time.Friday))
	assert.False(t, tpl.IsEmpty())
	assert.True(t, WeeklyTemplate{"Friday": {}}.IsEmpty())
	assert.Nil(t, WeeklyTemplate(nil).TimesFor(time.Monday))

	day, ok := ParseWeekday("Sunday")
	assert.True(t, ok)
	assert.Equal(t, time.Sunday, day)
	_, ok = ParseWeekday("monday")
	assert.False(t, ok)
}

func TestBooking_SlotRefAndLive(t *testing.T) {
	b := &Booking{Status: BookingStatusPending, AvailabilityID: "d1", SlotID: "09:00"}
	ref, ok := b.SlotRef()
	assert.True(t, ok)
	assert.Equal(t, SlotRef{AvailabilityID: "d1", SlotID: "09:00"}, ref)
	assert.True(t, b.IsLive())

	b.Status = BookingStatusCancelled
	assert.False(t, b.IsLive())

	_, ok = (&Booking{SlotID: "09:00"}).SlotRef()
	assert.False(t, ok)
}

func TestBookingFilter_Match(t *testing.T) {
	b := &Booking{
		StudentID:     "s1",
		LecturerID:    "l1",
		Status:        BookingStatusPending,
		PaymentMethod: PaymentMethodReceipt,
		PaymentStatus: PaymentStatusPending,
	}

	assert.True(t, BookingFilter{}.Match(b))
	assert.True(t, BookingFilter{StudentID: "s1", PaymentMethod: PaymentMethodReceipt}.Match(b))
	assert.False(t, BookingFilter{LecturerID: "l2"}.Match(b))
	assert.False(t, BookingFilter{PaymentStatus: PaymentStatusApproved}.Match(b))
}

func TestLecturer_Location(t *testing.T) {
	fallback := time.FixedZone("fallback", 3600)

	assert.Equal(t, fallback, (&Lecturer{}).Location(fallback))
	assert.Equal(t, fallback, (&Lecturer{Timezone: "Mars/Olympus"}).Location(fallback))
	assert.Equal(t, "Europe/Moscow", (&Lecturer{Timezone: "Europe/Moscow"}).Location(fallback).String())
}
