package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/google/uuid"
)

// ActivityRepository журнал действий по бронированию (append-only, UPDATE/DELETE запрещены триггером)
type ActivityRepository struct {
	base
}

func NewActivityRepository(q Querier) *ActivityRepository {
	return &ActivityRepository{base{q: q}}
}

// Append добавляет запись в конец журнала бронирования
func (r *ActivityRepository) Append(ctx context.Context, entry *model.ActivityLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO booking_activity (id, booking_id, seq, type, at, payload)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM booking_activity WHERE booking_id = $2),
			$3, $4, $5
		)
		RETURNING seq
	`

	err := r.q.QueryRow(ctx, query,
		entry.ID,
		entry.BookingID,
		entry.Type,
		entry.At,
		entry.Payload,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("append booking activity: %w", err)
	}

	return nil
}

// ListByBooking получает журнал в порядке добавления
func (r *ActivityRepository) ListByBooking(ctx context.Context, bookingID string) ([]*model.ActivityLogEntry, error) {
	query := `
		SELECT id, booking_id, seq, type, at, payload
		FROM booking_activity
		WHERE booking_id = $1
		ORDER BY seq
	`

	rows, err := r.q.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking activity: %w", err)
	}
	defer rows.Close()

	var entries []*model.ActivityLogEntry
	for rows.Next() {
		var entry model.ActivityLogEntry
		err := rows.Scan(
			&entry.ID,
			&entry.BookingID,
			&entry.Seq,
			&entry.Type,
			&entry.At,
			&entry.Payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking activity: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
