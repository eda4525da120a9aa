package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRepublisher struct {
	calls   atomic.Int32
	horizon atomic.Int32
	err     error
}

func (r *countingRepublisher) PublishAll(_ context.Context, horizonDays int) (int, error) {
	r.calls.Add(1)
	r.horizon.Store(int32(horizonDays))
	return 3, r.err
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	rep := &countingRepublisher{}
	s, err := NewScheduler("@every 1h", rep, 14, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return rep.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(14), rep.horizon.Load())
}

func TestScheduler_SyncSurvivesErrors(t *testing.T) {
	rep := &countingRepublisher{err: errors.New("db down")}
	s, err := NewScheduler("0 */6 * * *", rep, 7, zap.NewNop())
	require.NoError(t, err)

	s.Sync()
	s.Sync()
	assert.Equal(t, int32(2), rep.calls.Load())
}

func TestScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("every day", &countingRepublisher{}, 7, zap.NewNop())
	assert.Error(t, err)
}

// blockingRepublisher держит PublishAll до закрытия release
type blockingRepublisher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingRepublisher() *blockingRepublisher {
	return &blockingRepublisher{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (r *blockingRepublisher) PublishAll(ctx context.Context, _ int) (int, error) {
	r.calls.Add(1)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return 1, nil
}

func TestScheduler_SkipsRunWhileInitialSyncInProgress(t *testing.T) {
	rep := newBlockingRepublisher()
	s, err := NewScheduler("@every 1h", rep, 7, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	<-rep.started

	// плановый запуск во время стартового прогона пропускается
	s.job.Run()
	assert.Equal(t, int32(1), rep.calls.Load())

	close(rep.release)
	s.Stop(context.Background())
	assert.Equal(t, int32(1), rep.calls.Load())
}

func TestScheduler_StopWaitsForInitialSync(t *testing.T) {
	rep := newBlockingRepublisher()
	s, err := NewScheduler("@every 1h", rep, 7, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	<-rep.started

	stopped := make(chan struct{})
	go func() {
		s.Stop(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while sync was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(rep.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after sync finished")
	}
}

func TestScheduler_StopHonoursContext(t *testing.T) {
	rep := newBlockingRepublisher()
	s, err := NewScheduler("@every 1h", rep, 7, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	<-rep.started
	defer close(rep.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Stop(ctx)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthChecker(t *testing.T) {
	ok := NewHealthChecker(stubPinger{}, nil).Check(context.Background())
	assert.True(t, ok.OK())
	assert.Nil(t, ok.Redis)

	down := NewHealthChecker(stubPinger{err: errors.New("refused")}, nil).Check(context.Background())
	assert.False(t, down.OK())
}
