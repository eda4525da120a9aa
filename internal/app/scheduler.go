package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Republisher перепубликация доступности всех преподавателей
type Republisher interface {
	PublishAll(ctx context.Context, horizonDays int) (int, error)
}

// syncTimeout предел одного прогона синхронизации календарей
const syncTimeout = 10 * time.Minute

// Scheduler периодически перечитывает внешние календари и перепубликует доступность
type Scheduler struct {
	cron        *cron.Cron
	job         cron.Job
	republisher Republisher
	horizonDays int
	logger      *zap.Logger
	initial     sync.WaitGroup
}

// NewScheduler schedule в стандартном 5-польном формате cron
func NewScheduler(schedule string, republisher Republisher, horizonDays int, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := zapCronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:        cron.New(cron.WithLogger(cronLogger)),
		republisher: republisher,
		horizonDays: horizonDays,
		logger:      logger,
	}
	// один экземпляр обёртки на плановые и стартовый прогон, иначе они могут пересечься
	s.job = cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(s.Sync))

	if _, err := s.cron.AddJob(schedule, s.job); err != nil {
		return nil, fmt.Errorf("schedule calendar sync %q: %w", schedule, err)
	}
	return s, nil
}

// Start первый прогон сразу, дальше по расписанию
func (s *Scheduler) Start() {
	s.logger.Info("Starting calendar sync scheduler", zap.Int("horizon_days", s.horizonDays))
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.job.Run()
	}()
	s.cron.Start()
}

// Stop ждёт завершения текущего прогона или отмены ctx
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping calendar sync scheduler")

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Calendar sync did not finish before shutdown")
	}
}

// Sync один прогон перепубликации
func (s *Scheduler) Sync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	started := time.Now()
	published, err := s.republisher.PublishAll(ctx, s.horizonDays)
	if err != nil {
		s.logger.Error("Calendar sync failed", zap.Error(err))
		return
	}

	s.logger.Info("Calendar sync completed",
		zap.Int("lecturers", published),
		zap.Duration("took", time.Since(started)),
	)
}

// zapCronLogger пишет события cron в общий zap-логгер
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
