package events

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqPublisher ставит события бронирований в очередь Redis
type AsynqPublisher struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewAsynqPublisher(client *asynq.Client, logger *zap.Logger) *AsynqPublisher {
	return &AsynqPublisher{
		client: client,
		logger: logger,
	}
}

func (p *AsynqPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	task, opts, err := NewBookingTask(event)
	if err != nil {
		return err
	}

	info, err := p.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	p.logger.Debug("Booking event enqueued",
		zap.String("booking_id", event.BookingID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

// NopPublisher используется, когда Redis не настроен
type NopPublisher struct {
	logger *zap.Logger
}

func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) Publish(_ context.Context, event model.BookingEvent) error {
	p.logger.Debug("Booking event dropped, queue is not configured",
		zap.String("booking_id", event.BookingID),
		zap.String("type", string(event.Type)),
	)
	return nil
}
