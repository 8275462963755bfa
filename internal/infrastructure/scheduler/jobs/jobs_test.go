package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xapi/internal/application/command"
	"github.com/alem-hub/xapi/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/xapi/pkg/xapi"
)

type stubFlusher struct {
	result *command.FlushOutboxResult
	err    error
	calls  int
	during func()
}

func (f *stubFlusher) Handle(context.Context) (*command.FlushOutboxResult, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	return f.result, f.err
}

func newLocker(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestFlushOutboxJob_Run(t *testing.T) {
	flusher := &stubFlusher{result: &command.FlushOutboxResult{Batches: 2, Sent: 60, Dropped: 1, Rejected: 2}}
	job := NewFlushOutboxJob(flusher, nil, nil, DefaultFlushOutboxConfig())

	assert.Equal(t, "flush_outbox", job.Name())
	assert.NotEmpty(t, job.Description())
	assert.Nil(t, job.LastStats())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, flusher.calls)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 60, stats.Sent)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 2, stats.Rejected)
	assert.False(t, stats.Skipped)
}

func TestFlushOutboxJob_KeepsPartialStatsOnError(t *testing.T) {
	boom := errors.New("lrs down")
	flusher := &stubFlusher{result: &command.FlushOutboxResult{Batches: 1, Sent: 50}, err: boom}
	job := NewFlushOutboxJob(flusher, nil, nil, FlushOutboxConfig{})

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 50, job.LastStats().Sent)
}

func TestFlushOutboxJob_HoldsLockWhileFlushing(t *testing.T) {
	client, mr := newLocker(t)
	flusher := &stubFlusher{result: &command.FlushOutboxResult{}}
	flusher.during = func() {
		assert.True(t, mr.Exists(redis.LockKey(flushLockResource)), "lock must be held during the flush")
	}
	job := NewFlushOutboxJob(flusher, client, nil, DefaultFlushOutboxConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, flusher.calls)
	assert.False(t, mr.Exists(redis.LockKey(flushLockResource)), "lock must be released")
}

func TestFlushOutboxJob_SkipsWhenLockHeld(t *testing.T) {
	client, _ := newLocker(t)
	other, err := redis.TryLock(context.Background(), client, flushLockResource, time.Minute)
	require.NoError(t, err)
	defer func() { _ = other.Release(context.Background()) }()

	flusher := &stubFlusher{result: &command.FlushOutboxResult{}}
	job := NewFlushOutboxJob(flusher, client, nil, DefaultFlushOutboxConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, flusher.calls)
	assert.True(t, job.LastStats().Skipped)
}

func TestFlushOutboxJob_LockError(t *testing.T) {
	client, mr := newLocker(t)
	mr.Close()

	flusher := &stubFlusher{}
	job := NewFlushOutboxJob(flusher, client, nil, DefaultFlushOutboxConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, redis.ErrLockHeld)
	assert.Zero(t, flusher.calls)
}

type stubArchiver struct {
	result *command.ArchiveStatementsResult
	err    error
	cmds   []command.ArchiveStatementsCommand
}

func (a *stubArchiver) Handle(_ context.Context, cmd command.ArchiveStatementsCommand) (*command.ArchiveStatementsResult, error) {
	a.cmds = append(a.cmds, cmd)
	return a.result, a.err
}

func TestArchiveStatementsJob_Run(t *testing.T) {
	archiver := &stubArchiver{result: &command.ArchiveStatementsResult{Pages: 3, Archived: 250, Truncated: true}}
	query := &xapi.StatementsQuery{VerbID: xapi.VerbCompleted.ID}
	job := NewArchiveStatementsJob(archiver, nil, ArchiveStatementsConfig{Query: query, Timeout: time.Minute})

	assert.Equal(t, "archive_statements", job.Name())
	assert.NotEmpty(t, job.Description())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, archiver.cmds, 1)
	assert.Same(t, query, archiver.cmds[0].Query)
	assert.Nil(t, archiver.cmds[0].Since)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 250, stats.Archived)
	assert.True(t, stats.Truncated)
}

func TestArchiveStatementsJob_Error(t *testing.T) {
	boom := errors.New("postgres down")
	job := NewArchiveStatementsJob(&stubArchiver{err: boom}, nil, ArchiveStatementsConfig{})

	assert.ErrorIs(t, job.Run(context.Background()), boom)
	require.NotNil(t, job.LastStats())
	assert.Zero(t, job.LastStats().Archived)
}
