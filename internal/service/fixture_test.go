package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2026-03-01 воскресенье
var sunday = time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

type stubResolver struct {
	busy []model.BusyInterval
	err  error
}

func (r *stubResolver) Resolve(context.Context, *model.Lecturer, time.Time, time.Time) ([]model.BusyInterval, error) {
	return r.busy, r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []model.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.BookingEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store        *memory.Store
	resolver     *stubResolver
	events       *recordingPublisher
	availability *AvailabilityService
	ledger       *Ledger
	bookings     *BookingService
	lecturers    *LecturerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := func() time.Time { return sunday }
	store := memory.NewStore()
	store.SetClock(clock)

	f := &fixture{
		store:    store,
		resolver: &stubResolver{},
		events:   &recordingPublisher{},
	}
	logger := zap.NewNop()
	f.availability = NewAvailabilityService(store, f.resolver, time.Hour, time.UTC, clock, logger)
	f.ledger = NewLedger(store, f.events, clock, logger)
	f.bookings = NewBookingService(store, logger)
	f.lecturers = NewLecturerService(store, logger)
	return f
}

func (f *fixture) addLecturer(t *testing.T, id string, template model.WeeklyTemplate) *model.Lecturer {
	t.Helper()

	lecturer := &model.Lecturer{
		ID:             id,
		Name:           "Lecturer " + id,
		Subject:        "Math",
		Price:          2500,
		Timezone:       "UTC",
		WeeklyTemplate: template,
		IsActive:       true,
	}
	require.NoError(t, f.lecturers.SaveLecturer(context.Background(), lecturer))
	return lecturer
}

// publish публикует неделю и возвращает дни по дате
func (f *fixture) publish(t *testing.T, lecturerID string, days int) map[string]*model.AvailabilityDay {
	t.Helper()

	res, err := f.availability.Publish(context.Background(), lecturerID, days)
	require.NoError(t, err)

	out := make(map[string]*model.AvailabilityDay, len(res.Days))
	for _, d := range res.Days {
		out[d.Date] = d
	}
	return out
}

func (f *fixture) day(t *testing.T, id string) *model.AvailabilityDay {
	t.Helper()

	day, err := f.store.Availability().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, day)
	return day
}

func (f *fixture) slotAvailable(t *testing.T, availabilityID, slotID string) bool {
	t.Helper()

	_, slot := f.day(t, availabilityID).Slot(slotID)
	require.NotNil(t, slot)
	return slot.Available
}

var errBoom = errors.New("boom")
