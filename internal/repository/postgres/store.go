package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultMaxRetries = 5

// repos набор репозиториев поверх одного Querier
type repos struct {
	lecturers    *LecturerRepository
	availability *AvailabilityRepository
	bookings     *BookingRepository
	activity     *ActivityRepository
}

func newRepos(q Querier) *repos {
	return &repos{
		lecturers:    NewLecturerRepository(q),
		availability: NewAvailabilityRepository(q),
		bookings:     NewBookingRepository(q),
		activity:     NewActivityRepository(q),
	}
}

func (r *repos) Lecturers() repository.LecturerRepository       { return r.lecturers }
func (r *repos) Availability() repository.AvailabilityRepository { return r.availability }
func (r *repos) Bookings() repository.BookingRepository         { return r.bookings }
func (r *repos) Activity() repository.ActivityRepository        { return r.activity }

// Store хранилище поверх пула pgx
type Store struct {
	*repos
	pool       *pgxpool.Pool
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     *zap.Logger
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 10 * time.Millisecond
}

// NewStore создаёт хранилище; maxRetries <= 0 означает значение по умолчанию
func NewStore(pool *pgxpool.Pool, maxRetries int, logger *zap.Logger) *Store {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Store{
		repos:      newRepos(pool),
		pool:       pool,
		maxRetries: maxRetries,
		backoff:    linearBackoff,
		logger:     logger,
	}
}

// Ping проверяет соединение с базой
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx выполняет fn в SERIALIZABLE транзакции. Ошибки сериализации и
// дедлоки повторяются до maxRetries раз.
func (s *Store) WithTx(ctx context.Context, fn repository.TxFunc) error {
	return s.retry(ctx, func(ctx context.Context) error {
		return s.runTx(ctx, fn)
	})
}

// retry повторяет attempt, пока тот падает с конфликтом сериализации
func (s *Store) retry(ctx context.Context, attempt func(ctx context.Context) error) error {
	backoff := s.backoff
	if backoff == nil {
		backoff = linearBackoff
	}

	for n := 1; ; n++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if n >= s.maxRetries {
			return fmt.Errorf("%w: gave up after %d attempts: %v", model.ErrTransactionConflict, n, err)
		}

		s.logger.Debug("Retrying conflicting transaction",
			zap.Int("attempt", n),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Store) runTx(ctx context.Context, fn repository.TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
