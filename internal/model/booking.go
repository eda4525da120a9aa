package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"   // Ожидает подтверждения оплаты
	BookingStatusConfirmed BookingStatus = "CONFIRMED" // Подтверждено
	BookingStatusCancelled BookingStatus = "CANCELLED" // Отменено, слот освобождён
)

type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodReceipt PaymentMethod = "RECEIPT"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

type Booking struct {
	ID             string        `json:"id"`
	StudentID      string        `json:"student_id"`
	StudentName    string        `json:"student_name,omitempty"`
	LecturerID     string        `json:"lecturer_id"`
	LecturerName   string        `json:"lecturer_name,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	Date           string        `json:"date"`
	Time           string        `json:"time"`
	AvailabilityID string        `json:"availability_id,omitempty"`
	SlotID         string        `json:"slot_id,omitempty"`
	Status         BookingStatus `json:"status"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	ReceiptURL     string        `json:"receipt_url,omitempty"`
	Price          int           `json:"price"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsLive бронирование держит слот пока не отменено
func (b *Booking) IsLive() bool {
	return b.Status != BookingStatusCancelled
}

// SlotRef возвращает ссылку на слот, если бронирование её хранит
func (b *Booking) SlotRef() (SlotRef, bool) {
	if b.AvailabilityID == "" || b.SlotID == "" {
		return SlotRef{}, false
	}
	return SlotRef{AvailabilityID: b.AvailabilityID, SlotID: b.SlotID}, true
}

// BookingFilter фильтр для списков бронирований, пустые поля не учитываются
type BookingFilter struct {
	StudentID     string
	LecturerID    string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
}

// Match проверяет бронирование на соответствие фильтру
func (f BookingFilter) Match(b *Booking) bool {
	switch {
	case f.StudentID != "" && b.StudentID != f.StudentID:
		return false
	case f.LecturerID != "" && b.LecturerID != f.LecturerID:
		return false
	case f.Status != "" && b.Status != f.Status:
		return false
	case f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus:
		return false
	case f.PaymentMethod != "" && b.PaymentMethod != f.PaymentMethod:
		return false
	}
	return true
}
