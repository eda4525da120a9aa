package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AvailabilityRepository struct {
	base
}

func NewAvailabilityRepository(q Querier) *AvailabilityRepository {
	return &AvailabilityRepository{base{q: q}}
}

const availabilityColumns = `id, lecturer_id, date::text, time_slots, created_at, updated_at`

func scanAvailabilityDay(row pgx.Row) (*model.AvailabilityDay, error) {
	var day model.AvailabilityDay
	err := row.Scan(
		&day.ID,
		&day.LecturerID,
		&day.Date,
		&day.TimeSlots,
		&day.CreatedAt,
		&day.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// GetByID получает день доступности по ID
func (r *AvailabilityRepository) GetByID(ctx context.Context, id string) (*model.AvailabilityDay, error) {
	return r.get(ctx, `SELECT `+availabilityColumns+` FROM availability_days WHERE id = $1`, id)
}

// GetByIDForUpdate получает день доступности и блокирует строку до конца транзакции
func (r *AvailabilityRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.AvailabilityDay, error) {
	return r.get(ctx, `SELECT `+availabilityColumns+` FROM availability_days WHERE id = $1 FOR UPDATE`, id)
}

func (r *AvailabilityRepository) get(ctx context.Context, query, id string) (*model.AvailabilityDay, error) {
	day, err := scanAvailabilityDay(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability day: %w", err)
	}
	return day, nil
}

// ListByLecturer получает дни преподавателя в диапазоне [from, to)
func (r *AvailabilityRepository) ListByLecturer(ctx context.Context, lecturerID, from, to string) ([]*model.AvailabilityDay, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM availability_days
		WHERE lecturer_id = $1
		  AND date >= COALESCE(NULLIF($2, '')::date, '-infinity'::date)
		  AND date < COALESCE(NULLIF($3, '')::date, 'infinity'::date)
		ORDER BY date
	`

	rows, err := r.q.Query(ctx, query, lecturerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list availability days: %w", err)
	}
	defer rows.Close()

	var days []*model.AvailabilityDay
	for rows.Next() {
		day, err := scanAvailabilityDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability day: %w", err)
		}
		days = append(days, day)
	}

	return days, rows.Err()
}

// Upsert создаёт день или заменяет слоты существующего дня (lecturer_id, date)
func (r *AvailabilityRepository) Upsert(ctx context.Context, day *model.AvailabilityDay) error {
	if day.ID == "" {
		day.ID = uuid.NewString()
	}

	query := `
		INSERT INTO availability_days (id, lecturer_id, date, time_slots)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (lecturer_id, date) DO UPDATE SET
			time_slots = EXCLUDED.time_slots,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, day.ID, day.LecturerID, day.Date, day.TimeSlots).
		Scan(&day.ID, &day.CreatedAt, &day.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert availability day: %w", err)
	}

	return nil
}

// UpdateSlots перезаписывает слоты дня
func (r *AvailabilityRepository) UpdateSlots(ctx context.Context, id string, slots []model.TimeSlot) error {
	query := `
		UPDATE availability_days
		SET time_slots = $1, updated_at = NOW()
		WHERE id = $2
	`

	affected, err := r.execAffected(ctx, query, slots, id)
	if err != nil {
		return fmt.Errorf("update availability slots: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("availability day %s: %w", id, model.ErrNotFound)
	}

	return nil
}
