package model

import (
	"fmt"
	"time"
)

// DateLayout формат даты AvailabilityDay и Booking
const DateLayout = "2006-01-02"

// TimeLayout формат времени слота в шаблоне
const TimeLayout = "15:04"

type TimeSlot struct {
	ID        string `json:"id"` // совпадает со временем из шаблона
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// AvailabilityDay расписание преподавателя на конкретную дату
type AvailabilityDay struct {
	ID         string     `json:"id"`
	LecturerID string     `json:"lecturer_id"`
	Date       string     `json:"date"`
	TimeSlots  []TimeSlot `json:"time_slots"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Slot ищет слот по ID, возвращает индекс или -1
func (d *AvailabilityDay) Slot(slotID string) (int, *TimeSlot) {
	for i := range d.TimeSlots {
		if d.TimeSlots[i].ID == slotID {
			return i, &d.TimeSlots[i]
		}
	}
	return -1, nil
}

// SlotStart время начала слота в часовом поясе loc
func SlotStart(date, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot start %q %q: %w", date, hhmm, err)
	}
	return t, nil
}

// SlotRef ссылка бронирования на слот
type SlotRef struct {
	AvailabilityID string
	SlotID         string
}

// BusyInterval занятый промежуток [Start, End) во внешнем календаре
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps строгая проверка пересечения: касание границ не конфликт
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.End.After(start) && b.Start.Before(end)
}
