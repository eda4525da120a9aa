package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// rruleWeekdays индекс совпадает с time.Weekday
var rruleWeekdays = []rrule.Weekday{
	rrule.SU,
	rrule.MO,
	rrule.TU,
	rrule.WE,
	rrule.TH,
	rrule.FR,
	rrule.SA,
}

// PublishResult итог публикации доступности
type PublishResult struct {
	LecturerID string                   `json:"lecturer_id"`
	From       string                   `json:"from"`
	To         string                   `json:"to"` // не включительно
	Days       []*model.AvailabilityDay `json:"days"`
	// BusyResolved false, если внешний календарь не удалось прочитать
	// и слоты опубликованы без учёта занятости
	BusyResolved  bool `json:"busy_resolved"`
	BusyIntervals int  `json:"busy_intervals"`
}

type AvailabilityService struct {
	store         repository.Store
	resolver      BusyResolver
	classDuration time.Duration
	defaultLoc    *time.Location
	now           Clock
	logger        *zap.Logger
}

func NewAvailabilityService(
	store repository.Store,
	resolver BusyResolver,
	classDuration time.Duration,
	defaultLoc *time.Location,
	now Clock,
	logger *zap.Logger,
) *AvailabilityService {
	if classDuration <= 0 {
		classDuration = DefaultClassDuration
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		store:         store,
		resolver:      resolver,
		classDuration: classDuration,
		defaultLoc:    defaultLoc,
		now:           now,
		logger:        logger,
	}
}

// Publish разворачивает недельный шаблон преподавателя на [сегодня, сегодня+horizonDays)
// и записывает по одному дню доступности на каждую дату с непустым шаблоном.
// Все дни пишутся одной транзакцией. Слот, занятый живым бронированием,
// остаётся недоступным независимо от пересчёта.
func (s *AvailabilityService) Publish(ctx context.Context, lecturerID string, horizonDays int) (*PublishResult, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("horizon %d days: %w", horizonDays, model.ErrInvalidInput)
	}

	lecturer, err := s.store.Lecturers().GetByID(ctx, lecturerID)
	if err != nil {
		return nil, fmt.Errorf("get lecturer: %w", err)
	}
	if lecturer == nil {
		return nil, fmt.Errorf("lecturer %s: %w", lecturerID, model.ErrNotFound)
	}
	if lecturer.WeeklyTemplate.IsEmpty() {
		return nil, fmt.Errorf("lecturer %s has no weekly template: %w", lecturerID, model.ErrPrecondition)
	}

	loc := lecturer.Location(s.defaultLoc)
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := today.AddDate(0, 0, horizonDays)

	result := &PublishResult{
		LecturerID:   lecturerID,
		From:         today.Format(model.DateLayout),
		To:           end.Format(model.DateLayout),
		BusyResolved: true,
	}

	// Занятость читаем один раз на весь горизонт. Ошибка внешнего календаря
	// не останавливает публикацию: слоты выходят без учёта занятости.
	busy, err := s.resolver.Resolve(ctx, lecturer, today, end)
	if err != nil {
		s.logger.Warn("Busy intervals unavailable, publishing without conflicts",
			zap.String("lecturer_id", lecturerID),
			zap.Error(err),
		)
		busy = nil
		result.BusyResolved = false
	}
	result.BusyIntervals = len(busy)

	dates, err := templateDates(lecturer.WeeklyTemplate, today, end)
	if err != nil {
		return nil, fmt.Errorf("expand weekly template: %w", err)
	}

	planned := make([]*model.AvailabilityDay, 0, len(dates))
	for _, d := range dates {
		times := lecturer.WeeklyTemplate.TimesFor(d.Weekday())
		date := d.Format(model.DateLayout)

		slots := make([]model.TimeSlot, 0, len(times))
		for _, hhmm := range times {
			start, err := model.SlotStart(date, hhmm, loc)
			if err != nil {
				return nil, fmt.Errorf("lecturer %s template: %w", lecturerID, err)
			}
			slots = append(slots, model.TimeSlot{
				ID:        hhmm,
				Time:      hhmm,
				Available: !conflicts(busy, start, start.Add(s.classDuration)),
			})
		}

		planned = append(planned, &model.AvailabilityDay{
			LecturerID: lecturerID,
			Date:       date,
			TimeSlots:  slots,
		})
	}

	var written []*model.AvailabilityDay
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// транзакция может повториться, поэтому дни собираются заново на каждой попытке
		written = make([]*model.AvailabilityDay, 0, len(planned))

		existing, err := repos.Availability().ListByLecturer(ctx, lecturerID, result.From, result.To)
		if err != nil {
			return fmt.Errorf("list availability: %w", err)
		}

		byDate := make(map[string]*model.AvailabilityDay, len(existing))
		ids := make([]string, 0, len(existing))
		for _, day := range existing {
			byDate[day.Date] = day
			ids = append(ids, day.ID)
		}

		held := make(map[model.SlotRef]bool)
		if len(ids) > 0 {
			live, err := repos.Bookings().ListLiveByAvailability(ctx, ids)
			if err != nil {
				return fmt.Errorf("list live bookings: %w", err)
			}
			for _, b := range live {
				if ref, ok := b.SlotRef(); ok {
					held[ref] = true
				}
			}
		}

		for _, p := range planned {
			day := &model.AvailabilityDay{
				LecturerID: p.LecturerID,
				Date:       p.Date,
				TimeSlots:  append([]model.TimeSlot(nil), p.TimeSlots...),
			}
			if prev, ok := byDate[day.Date]; ok {
				day.ID = prev.ID
				day.TimeSlots = mergeHeldSlots(prev, day.TimeSlots, held)
			}
			if err := repos.Availability().Upsert(ctx, day); err != nil {
				return fmt.Errorf("upsert availability %s: %w", day.Date, err)
			}
			written = append(written, day)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish availability: %w", err)
	}

	result.Days = written

	s.logger.Info("Availability published",
		zap.String("lecturer_id", lecturerID),
		zap.String("from", result.From),
		zap.String("to", result.To),
		zap.Int("days", len(written)),
		zap.Bool("busy_resolved", result.BusyResolved),
	)

	return result, nil
}

// PublishAll перепубликует всех активных преподавателей с шаблоном.
// Ошибка одного преподавателя логируется и не прерывает обход.
func (s *AvailabilityService) PublishAll(ctx context.Context, horizonDays int) (int, error) {
	lecturers, err := s.store.Lecturers().List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list lecturers: %w", err)
	}

	published := 0
	for _, lecturer := range lecturers {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if lecturer.WeeklyTemplate.IsEmpty() {
			continue
		}

		if _, err := s.Publish(ctx, lecturer.ID, horizonDays); err != nil {
			s.logger.Error("Failed to republish availability",
				zap.String("lecturer_id", lecturer.ID),
				zap.Error(err),
			)
			continue
		}
		published++
	}

	return published, nil
}

// ListAvailability дни доступности преподавателя в [from, to); пустая граница не ограничивает
func (s *AvailabilityService) ListAvailability(ctx context.Context, lecturerID, from, to string) ([]*model.AvailabilityDay, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return nil, fmt.Errorf("date %q: %w", d, model.ErrInvalidInput)
		}
	}

	lecturer, err := s.store.Lecturers().GetByID(ctx, lecturerID)
	if err != nil {
		return nil, fmt.Errorf("get lecturer: %w", err)
	}
	if lecturer == nil {
		return nil, fmt.Errorf("lecturer %s: %w", lecturerID, model.ErrNotFound)
	}

	days, err := s.store.Availability().ListByLecturer(ctx, lecturerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	return days, nil
}

// Busy занятые интервалы преподавателя за произвольный период.
// В отличие от Publish ошибка календаря возвращается вызывающему.
func (s *AvailabilityService) Busy(ctx context.Context, lecturerID string, from, to time.Time) ([]model.BusyInterval, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("empty range %s..%s: %w", from, to, model.ErrInvalidInput)
	}

	lecturer, err := s.store.Lecturers().GetByID(ctx, lecturerID)
	if err != nil {
		return nil, fmt.Errorf("get lecturer: %w", err)
	}
	if lecturer == nil {
		return nil, fmt.Errorf("lecturer %s: %w", lecturerID, model.ErrNotFound)
	}

	busy, err := s.resolver.Resolve(ctx, lecturer, from, to)
	if err != nil {
		return nil, err
	}
	if busy == nil {
		busy = []model.BusyInterval{}
	}
	return busy, nil
}

// ClassDuration длительность одного занятия
func (s *AvailabilityService) ClassDuration() time.Duration {
	return s.classDuration
}

// templateDates даты в [from, to), на которые в шаблоне есть хотя бы одно время
func templateDates(template model.WeeklyTemplate, from, to time.Time) ([]time.Time, error) {
	var weekdays []rrule.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if len(template.TimesFor(day)) > 0 {
			weekdays = append(weekdays, rruleWeekdays[day])
		}
	}
	if len(weekdays) == 0 {
		return nil, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   from,
		Until:     to.Add(-time.Second),
		Byweekday: weekdays,
	})
	if err != nil {
		return nil, err
	}

	return rule.All(), nil
}

// conflicts строгое пересечение с любым занятым интервалом
func conflicts(busy []model.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// mergeHeldSlots сохраняет available=false для слотов с живым бронированием.
// Слот, убранный из шаблона, но занятый бронированием, тоже остаётся в дне.
func mergeHeldSlots(prev *model.AvailabilityDay, slots []model.TimeSlot, held map[model.SlotRef]bool) []model.TimeSlot {
	inTemplate := make(map[string]bool, len(slots))
	for i := range slots {
		inTemplate[slots[i].ID] = true
		if held[model.SlotRef{AvailabilityID: prev.ID, SlotID: slots[i].ID}] {
			slots[i].Available = false
		}
	}

	for _, old := range prev.TimeSlots {
		if inTemplate[old.ID] {
			continue
		}
		if held[model.SlotRef{AvailabilityID: prev.ID, SlotID: old.ID}] {
			old.Available = false
			slots = append(slots, old)
		}
	}

	return slots
}
