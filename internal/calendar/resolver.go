// Package calendar приводит внешние календари преподавателя (Google free/busy
// или публичную ICS-ленту) к общему списку занятых интервалов.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"go.uber.org/zap"
)

// SourceKind вид источника занятости преподавателя
type SourceKind string

const (
	SourceProviderLinked SourceKind = "PROVIDER"
	SourceICSLinked      SourceKind = "ICS"
	SourceNone           SourceKind = "NONE"
)

// SourceFor выбирает источник: сначала привязанный Google, затем ICS
func SourceFor(lecturer *model.Lecturer) SourceKind {
	switch {
	case lecturer.HasGoogleCalendar():
		return SourceProviderLinked
	case lecturer.CalendarICSURL != "":
		return SourceICSLinked
	default:
		return SourceNone
	}
}

// BusySource источник занятых интервалов
type BusySource interface {
	Kind() SourceKind
	BusyIntervals(ctx context.Context, lecturer *model.Lecturer, from, to time.Time) ([]model.BusyInterval, error)
}

// ResolutionError не удалось получить занятость из внешнего календаря
type ResolutionError struct {
	Source SourceKind
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve busy intervals from %s: %v", e.Source, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	return target == model.ErrResolution
}

// ICSSource занятость из публичной ICS-ленты
type ICSSource struct {
	fetcher *Fetcher
}

func NewICSSource(fetcher *Fetcher) *ICSSource {
	return &ICSSource{fetcher: fetcher}
}

func (s *ICSSource) Kind() SourceKind {
	return SourceICSLinked
}

// BusyIntervals возвращает все события ленты; обрезку по [from, to) делает Resolver
func (s *ICSSource) BusyIntervals(ctx context.Context, lecturer *model.Lecturer, _, _ time.Time) ([]model.BusyInterval, error) {
	body, err := s.fetcher.Fetch(ctx, lecturer.CalendarICSURL)
	if err != nil {
		return nil, err
	}
	return ParseICS(bytes.NewReader(body))
}

// Resolver Busy-Interval Resolver
type Resolver struct {
	provider BusySource
	ics      BusySource
	logger   *zap.Logger
}

// NewResolver provider может быть nil, если Google OAuth не настроен
func NewResolver(provider, ics BusySource, logger *zap.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		ics:      ics,
		logger:   logger,
	}
}

// Resolve возвращает занятые интервалы, пересекающие [from, to), отсортированные по началу.
// Любая ошибка источника оборачивается в *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, lecturer *model.Lecturer, from, to time.Time) ([]model.BusyInterval, error) {
	kind := SourceFor(lecturer)

	var source BusySource
	switch kind {
	case SourceProviderLinked:
		source = r.provider
		if source == nil && lecturer.CalendarICSURL != "" {
			// Google не настроен на сервере, пробуем ICS
			kind, source = SourceICSLinked, r.ics
		}
	case SourceICSLinked:
		source = r.ics
	case SourceNone:
		return nil, nil
	}
	if source == nil {
		return nil, &ResolutionError{Source: kind, Err: fmt.Errorf("source %s is not configured", kind)}
	}

	intervals, err := source.BusyIntervals(ctx, lecturer, from, to)
	if err != nil {
		return nil, &ResolutionError{Source: kind, Err: err}
	}

	out := make([]model.BusyInterval, 0, len(intervals))
	for _, interval := range intervals {
		if interval.Overlaps(from, to) {
			out = append(out, interval)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	r.logger.Debug("busy intervals resolved",
		zap.String("lecturer_id", lecturer.ID),
		zap.String("source", string(kind)),
		zap.Int("count", len(out)))

	return out, nil
}
