package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func okJob(name string) *funcJob {
	return &funcJob{name: name, run: func(context.Context) error { return nil }}
}

func newTestScheduler(tick time.Duration) *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = tick
	return NewScheduler(cfg)
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(time.Second)

	require.NoError(t, s.Register(okJob("flush"), NewIntervalSchedule(time.Minute)))

	err := s.Register(okJob("flush"), NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(okJob("other"), nil), ErrNilSchedule)

	info, err := s.GetJobInfo("flush")
	require.NoError(t, err)
	assert.Equal(t, "test job flush", info.Description)
	assert.Equal(t, "@every 1m0s", info.Schedule)
	assert.True(t, info.Enabled)
	assert.False(t, info.NextRun.IsZero())

	require.NoError(t, s.Unregister("flush"))
	assert.ErrorIs(t, s.Unregister("flush"), ErrJobNotFound)
	assert.Empty(t, s.ListJobs())
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(time.Second)
	boom := errors.New("lrs unavailable")
	require.NoError(t, s.Register(&funcJob{name: "failing", run: func(context.Context) error { return boom }}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(okJob("ok"), NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "failing")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.True(t, result.Manual)

	result, err = s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	info, err := s.GetJobInfo("failing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
	require.NotNil(t, info.LastResult)
	assert.ErrorIs(t, info.LastResult.Error, boom)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.InDelta(t, 0.5, snap.SuccessRate, 1e-9)
}

func TestScheduler_Hooks(t *testing.T) {
	s := newTestScheduler(time.Second)
	boom := errors.New("boom")
	require.NoError(t, s.Register(&funcJob{name: "job", run: func(context.Context) error { return boom }}, NewIntervalSchedule(time.Hour)))

	var started, failed []string
	var completed []JobResult
	s.OnJobStart(func(name string) { started = append(started, name) })
	s.OnJobError(func(name string, err error) { failed = append(failed, name) })
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r) })

	_, _ = s.RunNow(context.Background(), "job")

	assert.Equal(t, []string{"job"}, started)
	assert.Equal(t, []string{"job"}, failed)
	require.Len(t, completed, 1)
	assert.False(t, completed[0].Success)
}

func TestScheduler_JobTimeout(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	s := NewScheduler(cfg)

	slow := &funcJob{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, s.Register(slow, NewIntervalSchedule(time.Hour)))

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_HistoryIsCapped(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.MaxHistorySize = 3
	s := NewScheduler(cfg)
	require.NoError(t, s.Register(okJob("job"), NewIntervalSchedule(time.Hour)))

	for range 5 {
		_, err := s.RunNow(context.Background(), "job")
		require.NoError(t, err)
	}

	assert.Len(t, s.GetHistory(0), 3)
	assert.Len(t, s.GetHistory(2), 2)
	assert.Len(t, s.GetHistory(10), 3)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(5 * time.Millisecond)
	var runs atomic.Int32
	job := &funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestScheduler_NoOverlap(t *testing.T) {
	s := newTestScheduler(2 * time.Millisecond)
	release := make(chan struct{})
	var (
		active, maxActive atomic.Int32
		runs              atomic.Int32
	)
	job := &funcJob{name: "slow", run: func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	info, err := s.GetJobInfo("slow")
	require.NoError(t, err)
	assert.True(t, info.Running)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := newTestScheduler(2 * time.Millisecond)
	var runs atomic.Int32
	job := &funcJob{name: "job", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.DisableJob("job"))
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, runs.Load())

	require.NoError(t, s.EnableJob("job"))
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, 2*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	s := newTestScheduler(2 * time.Millisecond)
	var (
		once    sync.Once
		started = make(chan struct{})
		ctxErr  atomic.Value
	)
	job := &funcJob{name: "long", run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		ctxErr.Store(ctx.Err())
		return ctx.Err()
	}}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job did not start")
	}
	require.NoError(t, s.Stop())
	assert.Equal(t, context.Canceled, ctxErr.Load())
}
