package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/jackc/pgx/v5"
)

type LecturerRepository struct {
	base
}

func NewLecturerRepository(q Querier) *LecturerRepository {
	return &LecturerRepository{base{q: q}}
}

const lecturerColumns = `id, name, subject, price, timezone, weekly_template, calendar_ics_url,
		google_token, telegram_chat_id, is_active, created_at, updated_at`

func scanLecturer(row pgx.Row) (*model.Lecturer, error) {
	var l model.Lecturer
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Subject,
		&l.Price,
		&l.Timezone,
		&l.WeeklyTemplate,
		&l.CalendarICSURL,
		&l.GoogleToken,
		&l.TelegramChatID,
		&l.IsActive,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByID получает преподавателя по ID
func (r *LecturerRepository) GetByID(ctx context.Context, id string) (*model.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM lecturers WHERE id = $1`

	lecturer, err := scanLecturer(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lecturer by id: %w", err)
	}

	return lecturer, nil
}

// Save создаёт или обновляет преподавателя
func (r *LecturerRepository) Save(ctx context.Context, lecturer *model.Lecturer) error {
	query := `
		INSERT INTO lecturers (id, name, subject, price, timezone, weekly_template, calendar_ics_url,
			google_token, telegram_chat_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			subject = EXCLUDED.subject,
			price = EXCLUDED.price,
			timezone = EXCLUDED.timezone,
			weekly_template = EXCLUDED.weekly_template,
			calendar_ics_url = EXCLUDED.calendar_ics_url,
			google_token = EXCLUDED.google_token,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		lecturer.ID,
		lecturer.Name,
		lecturer.Subject,
		lecturer.Price,
		lecturer.Timezone,
		lecturer.WeeklyTemplate,
		lecturer.CalendarICSURL,
		lecturer.GoogleToken,
		lecturer.TelegramChatID,
		lecturer.IsActive,
	).Scan(&lecturer.CreatedAt, &lecturer.UpdatedAt)

	if err != nil {
		return fmt.Errorf("save lecturer: %w", err)
	}

	return nil
}

// List получает всех активных преподавателей
func (r *LecturerRepository) List(ctx context.Context) ([]*model.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM lecturers WHERE is_active = TRUE ORDER BY name, id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	defer rows.Close()

	var lecturers []*model.Lecturer
	for rows.Next() {
		lecturer, err := scanLecturer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lecturer: %w", err)
		}
		lecturers = append(lecturers, lecturer)
	}

	return lecturers, rows.Err()
}
