package repository

import (
	"context"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

// Репозитории возвращают nil, nil если запись не найдена;
// перевод в model.ErrNotFound делают сервисы.

// LecturerRepository хранение преподавателей и их недельных шаблонов
type LecturerRepository interface {
	GetByID(ctx context.Context, id string) (*model.Lecturer, error)
	Save(ctx context.Context, lecturer *model.Lecturer) error
	List(ctx context.Context) ([]*model.Lecturer, error)
}

// AvailabilityRepository дни доступности. Флаг available в слотах меняет только
// Ledger (через UpdateSlots) и публикатор при пересчёте свободных слотов.
type AvailabilityRepository interface {
	GetByID(ctx context.Context, id string) (*model.AvailabilityDay, error)
	// GetByIDForUpdate блокирует документ до конца транзакции
	GetByIDForUpdate(ctx context.Context, id string) (*model.AvailabilityDay, error)
	// ListByLecturer дни в диапазоне [from, to), пустая граница не ограничивает
	ListByLecturer(ctx context.Context, lecturerID, from, to string) ([]*model.AvailabilityDay, error)
	Upsert(ctx context.Context, day *model.AvailabilityDay) error
	UpdateSlots(ctx context.Context, id string, slots []model.TimeSlot) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, booking *model.Booking) error
	// List сортирует по дате и времени занятия
	List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
	// ListLiveByAvailability неотменённые бронирования, ссылающиеся на указанные дни
	ListLiveByAvailability(ctx context.Context, availabilityIDs []string) ([]*model.Booking, error)
}

// ActivityRepository журнал бронирования, только Append и чтение
type ActivityRepository interface {
	Append(ctx context.Context, entry *model.ActivityLogEntry) error
	ListByBooking(ctx context.Context, bookingID string) ([]*model.ActivityLogEntry, error)
}

// Repositories набор репозиториев поверх одного соединения или одной транзакции
type Repositories interface {
	Lecturers() LecturerRepository
	Availability() AvailabilityRepository
	Bookings() BookingRepository
	Activity() ActivityRepository
}

// TxFunc тело транзакции; ошибка откатывает все изменения
type TxFunc func(ctx context.Context, repos Repositories) error

// Store хранилище с сериализуемыми транзакциями над несколькими документами.
// Конфликт с параллельной транзакцией повторяется ограниченное число раз,
// затем возвращается model.ErrTransactionConflict.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
}
