package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

// StatusDisplay emoji и подпись статуса для сообщений
type StatusDisplay struct {
	Emoji string
	Text  string
}

func (d StatusDisplay) String() string {
	return d.Emoji + " " + d.Text
}

// BookingStatusDisplay отображение статуса бронирования
func BookingStatusDisplay(status model.BookingStatus) StatusDisplay {
	displays := map[model.BookingStatus]StatusDisplay{
		model.BookingStatusPending:   {"⏳", "pending"},
		model.BookingStatusConfirmed: {"✅", "confirmed"},
		model.BookingStatusCancelled: {"❌", "cancelled"},
	}

	if display, ok := displays[status]; ok {
		return display
	}
	return StatusDisplay{"❓", string(status)}
}

// PaymentDisplay способ и статус оплаты одной строкой
func PaymentDisplay(method model.PaymentMethod, status model.PaymentStatus) string {
	methods := map[model.PaymentMethod]string{
		model.PaymentMethodCard:    "💳 card",
		model.PaymentMethodReceipt: "🧾 receipt",
	}
	statuses := map[model.PaymentStatus]string{
		model.PaymentStatusPending:  "awaiting review",
		model.PaymentStatusApproved: "approved",
		model.PaymentStatusRejected: "rejected",
	}

	m, ok := methods[method]
	if !ok {
		m = strings.ToLower(string(method))
	}
	st, ok := statuses[status]
	if !ok {
		st = strings.ToLower(string(status))
	}
	return m + ", " + st
}

// FormatPrice цена из копеек, без дробной части если она нулевая
func FormatPrice(priceInCents int) string {
	price := float64(priceInCents) / 100
	if priceInCents%100 == 0 {
		return fmt.Sprintf("%.0f ₽", price)
	}
	return fmt.Sprintf("%.2f ₽", price)
}

// FormatWhen "2026-03-02 09:00 (Mon)"; некорректная дата выводится как есть
func FormatWhen(date, hhmm string) string {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date + " " + hhmm
	}
	return fmt.Sprintf("%s %s (%s)", date, hhmm, d.Weekday().String()[:3])
}

// FormatBookingMessage текст уведомления в HTML-разметке Telegram
func FormatBookingMessage(event model.BookingEvent, booking *model.Booking) string {
	var sb strings.Builder

	switch event.Type {
	case model.EventBookingCreated:
		sb.WriteString("📅 <b>New booking</b>\n\n")
	default:
		sb.WriteString("🔄 <b>Booking updated</b>\n\n")
	}

	student := booking.StudentName
	if student == "" {
		student = booking.StudentID
	}
	fmt.Fprintf(&sb, "Student: %s\n", html.EscapeString(student))
	if booking.Subject != "" {
		fmt.Fprintf(&sb, "Subject: %s\n", html.EscapeString(booking.Subject))
	}
	fmt.Fprintf(&sb, "When: %s\n", FormatWhen(booking.Date, booking.Time))
	if booking.Price > 0 {
		fmt.Fprintf(&sb, "Price: %s\n", FormatPrice(booking.Price))
	}
	fmt.Fprintf(&sb, "Status: %s\n", BookingStatusDisplay(booking.Status))
	fmt.Fprintf(&sb, "Payment: %s", PaymentDisplay(booking.PaymentMethod, booking.PaymentStatus))

	if booking.PaymentMethod == model.PaymentMethodReceipt && booking.PaymentStatus == model.PaymentStatusPending {
		sb.WriteString("\n\n⏳ Receipt is waiting for review")
	}

	return sb.String()
}
