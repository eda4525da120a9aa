// Package notify уведомления преподавателей о бронированиях в Telegram.
package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender часть *bot.Bot, нужная для отправки сообщений
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier пишет преподавателю в его чат
type TelegramNotifier struct {
	sender MessageSender
	logger *zap.Logger
}

func NewTelegramNotifier(sender MessageSender, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		logger: logger,
	}
}

// NotifyBooking преподаватели без привязанного чата пропускаются без ошибки
func (n *TelegramNotifier) NotifyBooking(ctx context.Context, event model.BookingEvent, booking *model.Booking, lecturer *model.Lecturer) error {
	if lecturer == nil || lecturer.TelegramChatID == nil {
		n.logger.Debug("Lecturer has no telegram chat, skipping notification",
			zap.String("booking_id", booking.ID),
			zap.String("lecturer_id", booking.LecturerID),
		)
		return nil
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *lecturer.TelegramChatID,
		Text:      FormatBookingMessage(event, booking),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
