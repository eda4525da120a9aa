// Package memory хранилище в памяти с той же семантикой транзакций, что и postgres:
// транзакции выполняются строго по очереди, изменения применяются только при успехе.
// Используется в тестах и при STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	lecturers map[string]*model.Lecturer
	days      map[string]*model.AvailabilityDay
	bookings  map[string]*model.Booking
	activity  map[string][]*model.ActivityLogEntry
}

func newState() *state {
	return &state{
		lecturers: make(map[string]*model.Lecturer),
		days:      make(map[string]*model.AvailabilityDay),
		bookings:  make(map[string]*model.Booking),
		activity:  make(map[string][]*model.ActivityLogEntry),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, l := range s.lecturers {
		c.lecturers[id] = copyLecturer(l)
	}
	for id, d := range s.days {
		c.days[id] = copyDay(d)
	}
	for id, b := range s.bookings {
		c.bookings[id] = copyBooking(b)
	}
	for id, entries := range s.activity {
		c.activity[id] = append([]*model.ActivityLogEntry(nil), entries...)
	}
	return c
}

// Store хранилище в памяти
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
	view
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	s := &Store{
		state: newState(),
		now:   time.Now,
	}
	s.view = view{store: s}
	return s
}

// SetClock подменяет часы для created_at / updated_at
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Ping всегда успешен
func (s *Store) Ping(context.Context) error {
	return nil
}

// WithTx выполняет fn над копией данных и применяет её только при успехе
func (s *Store) WithTx(ctx context.Context, fn repository.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.state.clone()
	if err := fn(ctx, &view{store: s, st: staged}); err != nil {
		return err
	}

	s.state = staged
	return nil
}

// view репозитории поверх зафиксированных данных (st == nil) или копии транзакции
type view struct {
	store *Store
	st    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func (v *view) Lecturers() repository.LecturerRepository       { return lecturerRepo{v} }
func (v *view) Availability() repository.AvailabilityRepository { return availabilityRepo{v} }
func (v *view) Bookings() repository.BookingRepository         { return bookingRepo{v} }
func (v *view) Activity() repository.ActivityRepository        { return activityRepo{v} }

func newID() string {
	return uuid.NewString()
}

// lecturers

type lecturerRepo struct{ v *view }

func (r lecturerRepo) GetByID(_ context.Context, id string) (*model.Lecturer, error) {
	var out *model.Lecturer
	err := r.v.do(func(st *state) error {
		if l, ok := st.lecturers[id]; ok {
			out = copyLecturer(l)
		}
		return nil
	})
	return out, err
}

func (r lecturerRepo) Save(_ context.Context, lecturer *model.Lecturer) error {
	now := r.v.store.now()
	return r.v.do(func(st *state) error {
		if existing, ok := st.lecturers[lecturer.ID]; ok {
			lecturer.CreatedAt = existing.CreatedAt
		} else {
			lecturer.CreatedAt = now
		}
		lecturer.UpdatedAt = now
		st.lecturers[lecturer.ID] = copyLecturer(lecturer)
		return nil
	})
}

func (r lecturerRepo) List(_ context.Context) ([]*model.Lecturer, error) {
	var out []*model.Lecturer
	err := r.v.do(func(st *state) error {
		for _, l := range st.lecturers {
			if l.IsActive {
				out = append(out, copyLecturer(l))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// availability

type availabilityRepo struct{ v *view }

func (r availabilityRepo) GetByID(_ context.Context, id string) (*model.AvailabilityDay, error) {
	var out *model.AvailabilityDay
	err := r.v.do(func(st *state) error {
		if d, ok := st.days[id]; ok {
			out = copyDay(d)
		}
		return nil
	})
	return out, err
}

// GetByIDForUpdate транзакции и так выполняются по очереди
func (r availabilityRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AvailabilityDay, error) {
	return r.GetByID(ctx, id)
}

func (r availabilityRepo) ListByLecturer(_ context.Context, lecturerID, from, to string) ([]*model.AvailabilityDay, error) {
	var out []*model.AvailabilityDay
	err := r.v.do(func(st *state) error {
		for _, d := range st.days {
			if d.LecturerID != lecturerID {
				continue
			}
			if from != "" && d.Date < from {
				continue
			}
			if to != "" && d.Date >= to {
				continue
			}
			out = append(out, copyDay(d))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, err
}

func (r availabilityRepo) Upsert(_ context.Context, day *model.AvailabilityDay) error {
	now := r.v.store.now()
	return r.v.do(func(st *state) error {
		for _, existing := range st.days {
			if existing.LecturerID == day.LecturerID && existing.Date == day.Date {
				day.ID = existing.ID
				day.CreatedAt = existing.CreatedAt
				day.UpdatedAt = now
				st.days[day.ID] = copyDay(day)
				return nil
			}
		}
		if day.ID == "" {
			day.ID = newID()
		}
		day.CreatedAt = now
		day.UpdatedAt = now
		st.days[day.ID] = copyDay(day)
		return nil
	})
}

func (r availabilityRepo) UpdateSlots(_ context.Context, id string, slots []model.TimeSlot) error {
	now := r.v.store.now()
	return r.v.do(func(st *state) error {
		d, ok := st.days[id]
		if !ok {
			return model.ErrNotFound
		}
		d.TimeSlots = append([]model.TimeSlot(nil), slots...)
		d.UpdatedAt = now
		return nil
	})
}

// bookings

type bookingRepo struct{ v *view }

func (r bookingRepo) Create(_ context.Context, booking *model.Booking) error {
	now := r.v.store.now()
	return r.v.do(func(st *state) error {
		if ref, ok := booking.SlotRef(); ok && booking.IsLive() && liveHolder(st, ref, "") != "" {
			return model.ErrSlotUnavailable
		}
		if booking.ID == "" {
			booking.ID = newID()
		}
		booking.CreatedAt = now
		booking.UpdatedAt = now
		st.bookings[booking.ID] = copyBooking(booking)
		return nil
	})
}

func (r bookingRepo) GetByID(_ context.Context, id string) (*model.Booking, error) {
	var out *model.Booking
	err := r.v.do(func(st *state) error {
		if b, ok := st.bookings[id]; ok {
			out = copyBooking(b)
		}
		return nil
	})
	return out, err
}

func (r bookingRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) Update(_ context.Context, booking *model.Booking) error {
	now := r.v.store.now()
	return r.v.do(func(st *state) error {
		existing, ok := st.bookings[booking.ID]
		if !ok {
			return model.ErrNotFound
		}
		if ref, ok := booking.SlotRef(); ok && booking.IsLive() && liveHolder(st, ref, booking.ID) != "" {
			return model.ErrSlotUnavailable
		}
		existing.Date = booking.Date
		existing.Time = booking.Time
		existing.AvailabilityID = booking.AvailabilityID
		existing.SlotID = booking.SlotID
		existing.Status = booking.Status
		existing.PaymentStatus = booking.PaymentStatus
		existing.UpdatedAt = now
		booking.UpdatedAt = now
		return nil
	})
}

func (r bookingRepo) List(_ context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	var out []*model.Booking
	err := r.v.do(func(st *state) error {
		for _, b := range st.bookings {
			if filter.Match(b) {
				out = append(out, copyBooking(b))
			}
		}
		return nil
	})
	sortBookings(out)
	return out, err
}

func (r bookingRepo) ListLiveByAvailability(_ context.Context, availabilityIDs []string) ([]*model.Booking, error) {
	ids := make(map[string]bool, len(availabilityIDs))
	for _, id := range availabilityIDs {
		ids[id] = true
	}

	var out []*model.Booking
	err := r.v.do(func(st *state) error {
		for _, b := range st.bookings {
			if b.IsLive() && ids[b.AvailabilityID] {
				out = append(out, copyBooking(b))
			}
		}
		return nil
	})
	sortBookings(out)
	return out, err
}

// liveHolder ID живого бронирования на слоте, кроме except
func liveHolder(st *state, ref model.SlotRef, except string) string {
	for id, b := range st.bookings {
		if id == except || !b.IsLive() {
			continue
		}
		if b.AvailabilityID == ref.AvailabilityID && b.SlotID == ref.SlotID {
			return id
		}
	}
	return ""
}

func sortBookings(bookings []*model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// activity

type activityRepo struct{ v *view }

func (r activityRepo) Append(_ context.Context, entry *model.ActivityLogEntry) error {
	return r.v.do(func(st *state) error {
		if entry.ID == "" {
			entry.ID = newID()
		}
		entries := st.activity[entry.BookingID]
		entry.Seq = int64(len(entries)) + 1
		stored := *entry
		stored.Payload = copyPayload(entry.Payload)
		st.activity[entry.BookingID] = append(entries, &stored)
		return nil
	})
}

func (r activityRepo) ListByBooking(_ context.Context, bookingID string) ([]*model.ActivityLogEntry, error) {
	var out []*model.ActivityLogEntry
	err := r.v.do(func(st *state) error {
		for _, e := range st.activity[bookingID] {
			c := *e
			c.Payload = copyPayload(e.Payload)
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}

// copies

func copyLecturer(l *model.Lecturer) *model.Lecturer {
	c := *l
	if l.WeeklyTemplate != nil {
		c.WeeklyTemplate = make(model.WeeklyTemplate, len(l.WeeklyTemplate))
		for day, times := range l.WeeklyTemplate {
			c.WeeklyTemplate[day] = append([]string(nil), times...)
		}
	}
	if l.GoogleToken != nil {
		token := *l.GoogleToken
		c.GoogleToken = &token
	}
	if l.TelegramChatID != nil {
		chatID := *l.TelegramChatID
		c.TelegramChatID = &chatID
	}
	return &c
}

func copyDay(d *model.AvailabilityDay) *model.AvailabilityDay {
	c := *d
	c.TimeSlots = append([]model.TimeSlot(nil), d.TimeSlots...)
	return &c
}

func copyBooking(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

func copyPayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	c := make(map[string]any, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
