package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.sent = append(s.sent, params)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: len(s.sent)}, nil
}

func testBooking() *model.Booking {
	return &model.Booking{
		ID:            "b1",
		StudentID:     "s1",
		StudentName:   "<Bob>",
		LecturerID:    "l1",
		Subject:       "Math",
		Date:          "2026-03-02",
		Time:          "09:00",
		Status:        model.BookingStatusPending,
		PaymentMethod: model.PaymentMethodReceipt,
		PaymentStatus: model.PaymentStatusPending,
	}
}

func TestTelegramNotifier_SendsToLecturerChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, zap.NewNop())
	chatID := int64(42)

	err := n.NotifyBooking(context.Background(),
		model.BookingEvent{Type: model.EventBookingCreated, BookingID: "b1"},
		testBooking(),
		&model.Lecturer{ID: "l1", TelegramChatID: &chatID},
	)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, models.ParseModeHTML, sender.sent[0].ParseMode)
	assert.Contains(t, sender.sent[0].Text, "New booking")
	assert.Contains(t, sender.sent[0].Text, "&lt;Bob&gt;")
	assert.Contains(t, sender.sent[0].Text, "Receipt is waiting for review")
}

func TestTelegramNotifier_SkipsLecturerWithoutChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, zap.NewNop())

	err := n.NotifyBooking(context.Background(), model.BookingEvent{Type: model.EventBookingUpdated}, testBooking(), &model.Lecturer{ID: "l1"})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)

	err = n.NotifyBooking(context.Background(), model.BookingEvent{Type: model.EventBookingUpdated}, testBooking(), nil)
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("forbidden: bot was blocked by the user")}
	n := NewTelegramNotifier(sender, zap.NewNop())
	chatID := int64(42)

	err := n.NotifyBooking(context.Background(), model.BookingEvent{Type: model.EventBookingUpdated}, testBooking(), &model.Lecturer{TelegramChatID: &chatID})
	assert.Error(t, err)
}

func TestFormatBookingMessage_Updated(t *testing.T) {
	b := testBooking()
	b.Status = model.BookingStatusCancelled
	b.PaymentStatus = model.PaymentStatusRejected

	text := FormatBookingMessage(model.BookingEvent{Type: model.EventBookingUpdated}, b)
	assert.Contains(t, text, "Booking updated")
	assert.Contains(t, text, "cancelled")
	assert.Contains(t, text, "2026-03-02 09:00")
	assert.NotContains(t, text, "waiting for review")
}
