package model

import "errors"

// Ошибки ядра бронирования. Сервисы оборачивают их через %w,
// вызывающая сторона проверяет errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrPrecondition        = errors.New("precondition failed")
	ErrInvalidInput        = errors.New("invalid input")
	ErrResolution          = errors.New("busy intervals could not be resolved")
	ErrTransactionConflict = errors.New("transaction conflict")
)
