// Package service ядро расписания: публикация доступности, атомарное
// бронирование слотов и журнал бронирований.
package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

// DefaultClassDuration длительность занятия, если в конфиге не задана
const DefaultClassDuration = time.Hour

// Границы горизонта публикации в днях
const (
	MinHorizonDays     = 1
	MaxHorizonDays     = 60
	DefaultHorizonDays = 7
)

// ClampHorizon приводит горизонт публикации к [MinHorizonDays, MaxHorizonDays]
func ClampHorizon(days int) int {
	switch {
	case days < MinHorizonDays:
		return MinHorizonDays
	case days > MaxHorizonDays:
		return MaxHorizonDays
	default:
		return days
	}
}

// BusyResolver источник занятых интервалов преподавателя
type BusyResolver interface {
	Resolve(ctx context.Context, lecturer *model.Lecturer, from, to time.Time) ([]model.BusyInterval, error)
}

// EventPublisher рассылка событий бронирования; ошибки не откатывают бронирование
type EventPublisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
}

// Clock источник текущего времени
type Clock func() time.Time
