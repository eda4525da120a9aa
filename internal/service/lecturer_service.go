package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LecturerService настройки преподавателя: недельный шаблон и привязка календарей
type LecturerService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewLecturerService(store repository.Store, logger *zap.Logger) *LecturerService {
	return &LecturerService{
		store:  store,
		logger: logger,
	}
}

func (s *LecturerService) GetLecturer(ctx context.Context, id string) (*model.Lecturer, error) {
	lecturer, err := s.store.Lecturers().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lecturer: %w", err)
	}
	if lecturer == nil {
		return nil, fmt.Errorf("lecturer %s: %w", id, model.ErrNotFound)
	}
	return lecturer, nil
}

// ListLecturers активные преподаватели по имени
func (s *LecturerService) ListLecturers(ctx context.Context) ([]*model.Lecturer, error) {
	lecturers, err := s.store.Lecturers().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	return lecturers, nil
}

// SaveLecturer создаёт или обновляет преподавателя (заведение из админки и сидов)
func (s *LecturerService) SaveLecturer(ctx context.Context, lecturer *model.Lecturer) error {
	if lecturer.Name == "" {
		return fmt.Errorf("lecturer name is required: %w", model.ErrInvalidInput)
	}
	if lecturer.Price < 0 {
		return fmt.Errorf("price %d: %w", lecturer.Price, model.ErrInvalidInput)
	}
	if lecturer.Timezone != "" {
		if _, err := time.LoadLocation(lecturer.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", lecturer.Timezone, model.ErrInvalidInput)
		}
	}
	if lecturer.WeeklyTemplate != nil {
		template, err := NormalizeTemplate(lecturer.WeeklyTemplate)
		if err != nil {
			return err
		}
		lecturer.WeeklyTemplate = template
	}
	if lecturer.ID == "" {
		lecturer.ID = uuid.NewString()
	}

	if err := s.store.Lecturers().Save(ctx, lecturer); err != nil {
		return fmt.Errorf("save lecturer: %w", err)
	}

	s.logger.Info("Lecturer saved", zap.String("lecturer_id", lecturer.ID))
	return nil
}

// UpdateWeeklyTemplate заменяет недельный шаблон. Уже опубликованные дни
// не меняются до следующей публикации.
func (s *LecturerService) UpdateWeeklyTemplate(ctx context.Context, id string, template model.WeeklyTemplate) (*model.Lecturer, error) {
	normalized, err := NormalizeTemplate(template)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, id, func(l *model.Lecturer) {
		l.WeeklyTemplate = normalized
	})
}

// LinkCalendar привязывает публичную ICS-ленту; пустой url отвязывает
func (s *LecturerService) LinkCalendar(ctx context.Context, id, icsURL string) (*model.Lecturer, error) {
	if icsURL != "" {
		u, err := url.Parse(icsURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "webcal") || u.Host == "" {
			return nil, fmt.Errorf("calendar url %q: %w", icsURL, model.ErrInvalidInput)
		}
		// webcal:// это тот же https
		if u.Scheme == "webcal" {
			u.Scheme = "https"
			icsURL = u.String()
		}
	}

	return s.update(ctx, id, func(l *model.Lecturer) {
		l.CalendarICSURL = icsURL
	})
}

// LinkGoogle сохраняет OAuth-токен Google Calendar
func (s *LecturerService) LinkGoogle(ctx context.Context, id string, token model.OAuthToken) (*model.Lecturer, error) {
	if token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required: %w", model.ErrInvalidInput)
	}

	return s.update(ctx, id, func(l *model.Lecturer) {
		l.GoogleToken = &token
	})
}

func (s *LecturerService) UnlinkGoogle(ctx context.Context, id string) (*model.Lecturer, error) {
	return s.update(ctx, id, func(l *model.Lecturer) {
		l.GoogleToken = nil
	})
}

func (s *LecturerService) update(ctx context.Context, id string, mutate func(*model.Lecturer)) (*model.Lecturer, error) {
	var lecturer *model.Lecturer
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		lecturer, err = repos.Lecturers().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get lecturer: %w", err)
		}
		if lecturer == nil {
			return fmt.Errorf("lecturer %s: %w", id, model.ErrNotFound)
		}

		mutate(lecturer)

		if err := repos.Lecturers().Save(ctx, lecturer); err != nil {
			return fmt.Errorf("save lecturer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update lecturer: %w", err)
	}

	s.logger.Info("Lecturer updated", zap.String("lecturer_id", id))
	return lecturer, nil
}

// NormalizeTemplate проверяет дни недели и время "HH:MM",
// убирает дубли и сортирует время внутри дня. Пустые дни выкидываются.
func NormalizeTemplate(template model.WeeklyTemplate) (model.WeeklyTemplate, error) {
	out := make(model.WeeklyTemplate, len(template))

	for day, times := range template {
		if _, ok := model.ParseWeekday(day); !ok {
			return nil, fmt.Errorf("weekday %q: %w", day, model.ErrInvalidInput)
		}

		seen := make(map[string]bool, len(times))
		normalized := make([]string, 0, len(times))
		for _, t := range times {
			parsed, err := time.Parse(model.TimeLayout, t)
			if err != nil {
				return nil, fmt.Errorf("time %q on %s: %w", t, day, model.ErrInvalidInput)
			}
			hhmm := parsed.Format(model.TimeLayout)
			if seen[hhmm] {
				continue
			}
			seen[hhmm] = true
			normalized = append(normalized, hhmm)
		}
		if len(normalized) == 0 {
			continue
		}

		sort.Strings(normalized)
		out[day] = normalized
	}

	return out, nil
}
