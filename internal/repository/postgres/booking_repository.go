package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	base
}

func NewBookingRepository(q Querier) *BookingRepository {
	return &BookingRepository{base{q: q}}
}

// bookingsLiveSlotKey частичный уникальный индекс: один живой booking на слот
const bookingsLiveSlotKey = "bookings_live_slot_key"

const bookingColumns = `id, student_id, student_name, lecturer_id, lecturer_name, subject, date::text, time,
		COALESCE(availability_id, ''), COALESCE(slot_id, ''), status, payment_method, payment_status,
		receipt_url, price, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.StudentName,
		&b.LecturerID,
		&b.LecturerName,
		&b.Subject,
		&b.Date,
		&b.Time,
		&b.AvailabilityID,
		&b.SlotID,
		&b.Status,
		&b.PaymentMethod,
		&b.PaymentStatus,
		&b.ReceiptURL,
		&b.Price,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	query := `
		INSERT INTO bookings (id, student_id, student_name, lecturer_id, lecturer_name, subject, date, time,
			availability_id, slot_id, status, payment_method, payment_status, receipt_url, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		booking.ID,
		booking.StudentID,
		booking.StudentName,
		booking.LecturerID,
		booking.LecturerName,
		booking.Subject,
		booking.Date,
		booking.Time,
		booking.AvailabilityID,
		booking.SlotID,
		booking.Status,
		booking.PaymentMethod,
		booking.PaymentStatus,
		booking.ReceiptURL,
		booking.Price,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, bookingsLiveSlotKey) {
			return fmt.Errorf("create booking: %w", model.ErrSlotUnavailable)
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetByIDForUpdate получает бронирование и блокирует строку до конца транзакции
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query, id string) (*model.Booking, error) {
	booking, err := scanBooking(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return booking, nil
}

// Update сохраняет изменяемые поля бронирования
func (r *BookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET date = $1::date,
			time = $2,
			availability_id = NULLIF($3, ''),
			slot_id = NULLIF($4, ''),
			status = $5,
			payment_status = $6,
			updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		booking.Date,
		booking.Time,
		booking.AvailabilityID,
		booking.SlotID,
		booking.Status,
		booking.PaymentStatus,
		booking.ID,
	).Scan(&booking.UpdatedAt)

	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("booking %s: %w", booking.ID, model.ErrNotFound)
		}
		if isUniqueViolation(err, bookingsLiveSlotKey) {
			return fmt.Errorf("update booking: %w", model.ErrSlotUnavailable)
		}
		return fmt.Errorf("update booking: %w", err)
	}

	return nil
}

// List получает бронирования по фильтру в хронологическом порядке
func (r *BookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE ($1 = '' OR student_id = $1)
		  AND ($2 = '' OR lecturer_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR payment_status = $4)
		  AND ($5 = '' OR payment_method = $5)
		ORDER BY date, time, created_at
	`

	rows, err := r.q.Query(ctx, query,
		filter.StudentID,
		filter.LecturerID,
		string(filter.Status),
		string(filter.PaymentStatus),
		string(filter.PaymentMethod),
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return collectBookings(rows)
}

// ListLiveByAvailability получает неотменённые бронирования указанных дней
func (r *BookingRepository) ListLiveByAvailability(ctx context.Context, availabilityIDs []string) ([]*model.Booking, error) {
	if len(availabilityIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE availability_id = ANY($1)
		  AND status <> 'CANCELLED'
	`

	rows, err := r.q.Query(ctx, query, availabilityIDs)
	if err != nil {
		return nil, fmt.Errorf("list live bookings by availability: %w", err)
	}

	return collectBookings(rows)
}
